package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"vendor-onboarding/internal/common/errors"
	"vendor-onboarding/internal/common/logger"
	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/onboarding/service"
)

type handlers struct {
	service OnboardingService
	baseURL string
	logger  logger.Logger
}

// statusFor maps error codes to HTTP statuses. Unknown codes are 500.
func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case errors.ErrCodeWorkflowNotFound, errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeWorkflowNotRunning:
		return http.StatusConflict
	case errors.ErrCodeTriggerTimeout, errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeExternalService, errors.ErrCodeTriggerExecutionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(c *gin.Context, err error) {
	stdErr := errors.Normalize(err)
	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", map[string]interface{}{
			"path":      c.Request.URL.Path,
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
	}
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    stdErr.Code,
			"message": stdErr.Message,
			"details": stdErr.Details,
		},
	})
}

// decodeObject reads a JSON object body. An empty body is an empty object.
// Numbers stay json.Number so engine keys above 2^53 survive intact.
func decodeObject(c *gin.Context) (map[string]interface{}, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if len(strings.TrimSpace(string(body))) == 0 {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON object")
	}
	return out, nil
}

// submittedForm unwraps the {"formData": {...}} envelope used by the portal.
// A body without one is the form itself.
func submittedForm(body map[string]interface{}) map[string]interface{} {
	if form, ok := body["formData"].(map[string]interface{}); ok {
		return form
	}
	return body
}

func (h *handlers) requestBaseURL(c *gin.Context) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if fwd := c.GetHeader("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + c.Request.Host
}

func (h *handlers) submitApplication(c *gin.Context) {
	body, err := decodeObject(c)
	if err != nil {
		h.fail(c, errors.NewValidationError("request body must be a JSON object"))
		return
	}
	form := submittedForm(body)

	res, err := h.service.SubmitApplication(c.Request.Context(), form, h.requestBaseURL(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"workflowId": res.WorkflowID,
		"status":     res.Status,
		"message":    "Application submitted successfully",
	})
}

func (h *handlers) approverResponse(c *gin.Context) {
	body, err := decodeObject(c)
	if err != nil {
		h.fail(c, errors.NewValidationError("request body must be a JSON object"))
		return
	}

	ordinal, err := intField(body["approverId"])
	if err != nil {
		h.fail(c, errors.NewValidationError("approverId must be an integer"))
		return
	}
	in := service.ApproverResponse{
		WorkflowID: stringField(body["workflowId"]),
		ApproverID: ordinal,
		Decision:   models.Decision(stringField(body["decision"])),
		Reason:     stringField(body["reason"]),
	}

	ack, err := h.service.RecordApproverResponse(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

func (h *handlers) workflowStatus(c *gin.Context) {
	view, err := h.service.GetWorkflowStatus(c.Request.Context(), c.Param("workflowId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) approvalCallback(c *gin.Context) {
	h.callback(c, h.service.HandleApprovalCallback)
}

func (h *handlers) rejectionCallback(c *gin.Context) {
	h.callback(c, h.service.HandleRejectionCallback)
}

// callback always acknowledges a readable payload; an unreadable one is
// treated as empty and will simply not correlate.
func (h *handlers) callback(c *gin.Context, handle func(ctx context.Context, payload map[string]interface{}) (*service.CallbackResult, error)) {
	payload, err := decodeObject(c)
	if err != nil {
		h.logger.Warn("Unreadable callback payload", map[string]interface{}{
			"path":  c.Request.URL.Path,
			"error": err.Error(),
		})
		payload = map[string]interface{}{}
	}

	res, err := handle(c.Request.Context(), payload)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) listApplications(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.fail(c, err)
		return
	}
	filter := models.WorkflowFilter{
		Status:         models.WorkflowStatus(strings.ToUpper(c.Query("status"))),
		ApplicantEmail: c.Query("email"),
		BusinessName:   c.Query("businessName"),
		Limit:          limit,
	}

	apps, err := h.service.ListApplications(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "applications": apps, "count": len(apps)})
}

func (h *handlers) listTransactions(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.fail(c, err)
		return
	}

	txs, err := h.service.ListTransactions(c.Request.Context(), c.Query("workflowId"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transactions": txs, "count": len(txs)})
}

func (h *handlers) approverQueue(c *gin.Context) {
	ordinal, err := strconv.Atoi(c.Param("approverId"))
	if err != nil {
		h.fail(c, errors.NewValidationError("approverId must be an integer"))
		return
	}

	queue, err := h.service.ApproverQueue(c.Request.Context(), ordinal)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "approverId": ordinal, "applications": queue, "count": len(queue)})
}

func (h *handlers) addTransaction(c *gin.Context) {
	var in service.TransactionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, errors.NewValidationError(fmt.Sprintf("invalid transaction: %v", err)))
		return
	}

	tx, err := h.service.AddTransaction(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "transaction": tx})
}

func (h *handlers) health(c *gin.Context) {
	report := h.service.Health(c.Request.Context())
	status := http.StatusOK
	if report.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.NewValidationError(fmt.Sprintf("%s must be a non-negative integer", key))
	}
	return n, nil
}

func stringField(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// intField accepts a JSON number or a numeric string.
func intField(v interface{}) (int, error) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, fmt.Errorf("not an integer: %v", t)
		}
		return int(n), nil
	case float64:
		if t != float64(int(t)) {
			return 0, fmt.Errorf("not an integer: %v", t)
		}
		return int(t), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	case nil:
		return 0, fmt.Errorf("missing")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
