package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/alantheprice/yardcheck/pkg/chat"
	"github.com/alantheprice/yardcheck/pkg/imageref"
	api "github.com/alantheprice/yardcheck/pkg/model_api"
	"github.com/alantheprice/yardcheck/pkg/pipeline"
	"github.com/alantheprice/yardcheck/pkg/prompts"
	"github.com/alantheprice/yardcheck/pkg/utils"
)

// maxBodyBytes leaves room for several base64-encoded photos.
const maxBodyBytes = 128 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// stringList accepts a JSON string, an array of strings, or null.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one *string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = nil
		if one != nil && *one != "" {
			*s = stringList{*one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a string or an array of strings")
	}
	*s = many
	return nil
}

type analyzeRequest struct {
	BeforeImage               string     `json:"before_image" validate:"required_without=BeforeImageDataURL"`
	BeforeImageDataURL        string     `json:"before_image_data_url"`
	AfterImage                stringList `json:"after_image"`
	AfterImages               stringList `json:"after_images"`
	AfterImageDataURLs        stringList `json:"after_image_data_urls"`
	RequestedTasks            string     `json:"requested_tasks" validate:"required,max=20000"`
	ContractorAccomplishments string     `json:"contractor_accomplishments" validate:"max=20000"`
	ContractorSelectedTasks   []string   `json:"contractor_selected_tasks" validate:"dive,max=2000"`
}

func (r analyzeRequest) beforeImage() string {
	if r.BeforeImage != "" {
		return r.BeforeImage
	}
	return r.BeforeImageDataURL
}

func (r analyzeRequest) afterImages() []string {
	var all []string
	all = append(all, r.AfterImage...)
	all = append(all, r.AfterImages...)
	all = append(all, r.AfterImageDataURLs...)
	return all
}

type analyzeResponse struct {
	Report             string   `json:"report,omitempty"`
	FinalReport        string   `json:"final_report,omitempty"`
	BeforeAnalysisText string   `json:"before_analysis_text"`
	OriginalTasksText  string   `json:"original_tasks_text"`
	VerificationText   string   `json:"verification_text"`
	IncompleteTasks    []string `json:"incomplete_tasks"`
	Verified           bool     `json:"verified"`
	RunID              string   `json:"run_id"`
}

type suggestRequest struct {
	BeforeImage string `json:"before_image" validate:"required"`
}

type suggestResponse struct {
	SuggestedTasks string   `json:"suggested_tasks"`
	Tasks          []string `json:"tasks"`
}

type chatContext struct {
	BeforeAnalysis            string      `json:"before_analysis"`
	OriginalTasks             string      `json:"original_tasks"`
	ContractorAccomplishments string      `json:"contractor_accomplishments"`
	FullReport                string      `json:"full_report"`
	ConversationHistory       []chat.Turn `json:"conversation_history"`
}

type chatRequest struct {
	UserQuestion              string       `json:"user_question" validate:"max=4000"`
	Question                  string       `json:"question" validate:"max=4000"`
	BeforeImage               string       `json:"before_image"`
	AfterImage                stringList   `json:"after_image"`
	AfterImages               stringList   `json:"after_images"`
	Context                   *chatContext `json:"context"`
	ChatHistory               []chat.Turn  `json:"chat_history" validate:"max=200"`
	BeforeAnalysisText        string       `json:"before_analysis_text"`
	OriginalTasksText         string       `json:"original_tasks_text"`
	ContractorAccomplishments string       `json:"contractor_accomplishments"`
	Report                    string       `json:"report"`
}

type chatResponse struct {
	Response  string `json:"response"`
	Answer    string `json:"answer"`
	Model     string `json:"model"`
	UsedImage string `json:"used_image"`
}

type errorResponse struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

// query flattens both accepted request shapes into a chat.Query. Images are
// decoded; top-level text fields fill anything the context object leaves out.
func (r chatRequest) query() (chat.Query, error) {
	q := chat.Query{Question: r.UserQuestion}
	if q.Question == "" {
		q.Question = r.Question
	}

	var err error
	if r.BeforeImage != "" {
		if q.Images.Before, err = decodeImage("before_image", r.BeforeImage); err != nil {
			return q, err
		}
	}
	after := append(append([]string{}, r.AfterImage...), r.AfterImages...)
	if q.Images.After, err = decodeImages("after_images", after); err != nil {
		return q, err
	}

	q.Context = prompts.ChatContext{
		BeforeAnalysis:  r.BeforeAnalysisText,
		Tasks:           r.OriginalTasksText,
		ContractorNotes: r.ContractorAccomplishments,
		Report:          r.Report,
	}
	q.History = r.ChatHistory
	if c := r.Context; c != nil {
		q.Context.BeforeAnalysis = firstNonEmpty(c.BeforeAnalysis, q.Context.BeforeAnalysis)
		q.Context.Tasks = firstNonEmpty(c.OriginalTasks, q.Context.Tasks)
		q.Context.ContractorNotes = firstNonEmpty(c.ContractorAccomplishments, q.Context.ContractorNotes)
		q.Context.Report = firstNonEmpty(c.FullReport, q.Context.Report)
		if len(c.ConversationHistory) > 0 {
			q.History = c.ConversationHistory
		}
	}
	return q, nil
}

func (ws *WebServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ws.runAnalysis(w, r, false)
}

func (ws *WebServer) handleFinalReport(w http.ResponseWriter, r *http.Request) {
	ws.runAnalysis(w, r, true)
}

func (ws *WebServer) runAnalysis(w http.ResponseWriter, r *http.Request, final bool) {
	requestID, logger := ws.beginRequest(w, r)

	var req analyzeRequest
	if err := decodeRequest(w, r, &req); err != nil {
		ws.writeError(w, logger, err)
		return
	}

	before, err := decodeImage("before_image", req.beforeImage())
	if err != nil {
		ws.writeError(w, logger, err)
		return
	}
	after, err := decodeImages("after_images", req.afterImages())
	if err != nil {
		ws.writeError(w, logger, err)
		return
	}

	logger.Logf("Analyze: final=%t, %d after image(s)", final, len(after))
	result, err := ws.pipeline.Run(r.Context(), pipeline.Request{
		RunID:           requestID,
		Before:          before,
		After:           after,
		Tasks:           req.RequestedTasks,
		ContractorNotes: req.ContractorAccomplishments,
		Final:           final,
		SelectedTasks:   req.ContractorSelectedTasks,
	})
	if err != nil {
		ws.writeError(w, logger, err)
		return
	}

	resp := analyzeResponse{
		BeforeAnalysisText: result.Report.BeforeAnalysis,
		OriginalTasksText:  result.Report.Tasks,
		VerificationText:   result.Context.Verification,
		IncompleteTasks:    result.Incomplete,
		Verified:           result.Verified,
		RunID:              result.RunID,
	}
	if resp.IncompleteTasks == nil {
		resp.IncompleteTasks = []string{}
	}
	if final {
		resp.FinalReport = result.Report.Text
	} else {
		resp.Report = result.Report.Text
	}
	writeJSON(w, http.StatusOK, resp)
}

func (ws *WebServer) handleSuggestTasks(w http.ResponseWriter, r *http.Request) {
	_, logger := ws.beginRequest(w, r)

	var req suggestRequest
	if err := decodeRequest(w, r, &req); err != nil {
		ws.writeError(w, logger, err)
		return
	}
	before, err := decodeImage("before_image", req.BeforeImage)
	if err != nil {
		ws.writeError(w, logger, err)
		return
	}

	raw, tasks, err := ws.pipeline.SuggestTasks(r.Context(), before)
	if err != nil {
		ws.writeError(w, logger, err)
		return
	}
	if tasks == nil {
		tasks = []string{}
	}
	logger.Logf("Suggest: %d task(s)", len(tasks))
	writeJSON(w, http.StatusOK, suggestResponse{SuggestedTasks: raw, Tasks: tasks})
}

func (ws *WebServer) handleChatQuery(w http.ResponseWriter, r *http.Request) {
	_, logger := ws.beginRequest(w, r)

	var req chatRequest
	if err := decodeRequest(w, r, &req); err != nil {
		ws.writeError(w, logger, err)
		return
	}
	resp, err := ws.answer(r.Context(), req)
	if err != nil {
		ws.writeError(w, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// answer is shared by the HTTP endpoint and websocket chat frames.
func (ws *WebServer) answer(ctx context.Context, req chatRequest) (*chatResponse, error) {
	q, err := req.query()
	if err != nil {
		return nil, err
	}
	ans, err := ws.chat.Ask(ctx, q)
	if err != nil {
		return nil, err
	}
	return &chatResponse{
		Response:  ans.Text,
		Answer:    ans.Text,
		Model:     ans.Model,
		UsedImage: ans.UsedImage,
	}, nil
}

// beginRequest tags the request with an id, echoed in X-Request-ID, and
// returns a logger scoped to it.
func (ws *WebServer) beginRequest(w http.ResponseWriter, r *http.Request) (string, *utils.Logger) {
	ws.mutex.Lock()
	ws.requests++
	ws.mutex.Unlock()

	id := r.Header.Get("X-Request-ID")
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", id)
	logger := ws.logger.WithCorrelationID(id)
	logger.Logf("%s %s", r.Method, r.URL.Path)
	return id, logger
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &api.ValidationError{Field: "body", Reason: fmt.Sprintf("request exceeds %d bytes", tooLarge.Limit)}
		}
		return &api.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	return validationError(validate.Struct(dst))
}

// validationError converts the first validator failure into the shared
// validation error type.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &api.ValidationError{Reason: err.Error()}
	}
	fe := fieldErrs[0]
	reason := fmt.Sprintf("failed %q check", fe.Tag())
	switch fe.Tag() {
	case "required", "required_without":
		reason = "is required"
	case "max":
		reason = "must be at most " + fe.Param() + " long"
	}
	return &api.ValidationError{Field: fe.Field(), Reason: reason}
}

func decodeImage(field, dataURL string) (*imageref.ImageRef, error) {
	if strings.TrimSpace(dataURL) == "" {
		return nil, &api.ValidationError{Field: field, Reason: "is required"}
	}
	img, err := imageref.FromDataURL(dataURL)
	if err != nil {
		return nil, &api.ValidationError{Field: field, Reason: err.Error()}
	}
	return img, nil
}

// decodeImages skips blank entries; the browser sends null for a missing photo.
func decodeImages(field string, dataURLs []string) ([]*imageref.ImageRef, error) {
	var images []*imageref.ImageRef
	for i, u := range dataURLs {
		if strings.TrimSpace(u) == "" {
			continue
		}
		img, err := decodeImage(fmt.Sprintf("%s[%d]", field, i), u)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// statusFor maps an error class to the HTTP status returned to clients.
func statusFor(err error) int {
	switch api.Class(err) {
	case "validation":
		return http.StatusBadRequest
	case "remote_api":
		return http.StatusBadGateway
	case "transport":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (ws *WebServer) writeError(w http.ResponseWriter, logger *utils.Logger, err error) {
	status := statusFor(err)
	logger.Logf("Request failed (%d, %s): %v", status, api.Class(err), err)
	writeJSON(w, status, errorResponse{Error: err.Error(), Class: api.Class(err)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
