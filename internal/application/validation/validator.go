// Package validation 负责生成请求的解析、清洗与校验
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"webforge-ai-api/internal/domain/entity"
	"webforge-ai-api/pkg/metrics"
)

// MaxPromptChars 提示的最大字符数
const MaxPromptChars = 1_000_000

// payload 请求体的宽松解码结构，指针用于区分缺省与零值
type payload struct {
	Prompt          *string          `json:"prompt"`
	ModelName       *string          `json:"modelName"`
	History         []historyPayload `json:"history" validate:"omitempty,dive"`
	Temperature     *float64         `json:"temperature" validate:"omitnil,gte=0,lte=2"`
	MaxOutputTokens *int             `json:"maxOutputTokens" validate:"omitnil,gte=1,lte=8192"`
	TopP            *float64         `json:"topP" validate:"omitnil,gte=0,lte=1"`
	TopK            *int             `json:"topK" validate:"omitnil,gte=1,lte=100"`
	Stream          *bool            `json:"stream"`
}

type historyPayload struct {
	Role  string        `json:"role" validate:"oneof=user model"`
	Parts []partPayload `json:"parts" validate:"min=1"`
}

type partPayload struct {
	Text string `json:"text"`
}

// decodePayload 逐字段解码，一次报告所有类型错误。未知字段忽略。
func decodePayload(raw []byte, verr *ValidationError) (payload, bool) {
	var p payload
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			verr.add("body", ReasonInvalidType, "body must be a JSON object")
		} else {
			verr.add("body", ReasonMalformedJSON, "request body is not valid JSON")
		}
		return p, false
	}
	if fields == nil {
		verr.add("body", ReasonInvalidType, "body must be a JSON object")
		return p, false
	}

	targets := []struct {
		name string
		dst  any
	}{
		{"prompt", &p.Prompt},
		{"modelName", &p.ModelName},
		{"history", &p.History},
		{"temperature", &p.Temperature},
		{"maxOutputTokens", &p.MaxOutputTokens},
		{"topP", &p.TopP},
		{"topK", &p.TopK},
		{"stream", &p.Stream},
	}
	ok := true
	for _, t := range targets {
		value, present := fields[t.name]
		if !present {
			continue
		}
		if err := json.Unmarshal(value, t.dst); err != nil {
			ok = false
			field := t.name
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				if typeErr.Field != "" {
					field += "." + typeErr.Field
				}
				verr.add(field, ReasonInvalidType, fmt.Sprintf("%s must be a %s", field, typeErr.Type.Kind()))
				continue
			}
			verr.add(field, ReasonInvalidType, fmt.Sprintf("%s has an invalid value", field))
		}
	}
	return p, ok
}

// Validator 请求校验器，构造后只读
type Validator struct {
	models       []string
	defaultModel string
	validate     *validator.Validate
}

// NewValidator 创建校验器；defaultModel 必须在允许列表中
func NewValidator(allowedModels []string, defaultModel string) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{
		models:       slices.Clone(allowedModels),
		defaultModel: defaultModel,
		validate:     v,
	}
}

// AllowedModels 返回允许的模型列表
func (v *Validator) AllowedModels() []string {
	return slices.Clone(v.models)
}

// Validate 解析并校验原始请求体。失败时返回 *ValidationError，不会返回部分请求。
func (v *Validator) Validate(raw []byte) (*entity.GenerationRequest, error) {
	req, err := v.validateRaw(raw)
	if err != nil {
		metrics.ValidationTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	metrics.ValidationTotal.WithLabelValues("accepted").Inc()
	return req, nil
}

func (v *Validator) validateRaw(raw []byte) (*entity.GenerationRequest, error) {
	verr := &ValidationError{}

	p, ok := decodePayload(raw, verr)
	if !ok {
		return nil, verr
	}

	prompt := v.checkPrompt(p.Prompt, verr)
	model := v.checkModel(p.ModelName, verr)

	if err := v.validate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, err
		}
		for _, fe := range fieldErrs {
			field := fieldPath(fe)
			switch fe.Tag() {
			case "oneof":
				verr.add(field, ReasonInvalidRole, "role must be one of: user, model")
			case "min":
				verr.add(field, ReasonEmptyParts, "history entry must contain at least one part")
			default:
				verr.add(field, ReasonOutOfRange, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
			}
		}
	}

	if len(verr.Violations) > 0 {
		return nil, verr
	}

	req := &entity.GenerationRequest{
		Prompt:          prompt,
		ModelName:       model,
		History:         sanitizeHistory(p.History),
		Temperature:     p.Temperature,
		MaxOutputTokens: p.MaxOutputTokens,
		TopP:            p.TopP,
		TopK:            p.TopK,
	}
	if p.Stream != nil {
		req.Stream = *p.Stream
	}
	return req, nil
}

func (v *Validator) checkPrompt(raw *string, verr *ValidationError) string {
	if raw == nil {
		verr.add("prompt", ReasonEmpty, "prompt is required and must not be empty")
		return ""
	}
	if n := utf8.RuneCountInString(*raw); n > MaxPromptChars {
		verr.add("prompt", ReasonTooLong, fmt.Sprintf("prompt length %d exceeds the maximum of %d characters", n, MaxPromptChars))
		return ""
	}
	clean := Sanitize(*raw)
	if clean == "" {
		verr.add("prompt", ReasonEmpty, "prompt must not be empty or blank")
	}
	return clean
}

// checkModel 缺省时使用默认模型；未知模型直接拒绝，不做替换
func (v *Validator) checkModel(raw *string, verr *ValidationError) string {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return v.defaultModel
	}
	model := strings.TrimSpace(*raw)
	if !slices.Contains(v.models, model) {
		verr.add("modelName", ReasonUnsupportedModel,
			fmt.Sprintf("model %q is not supported; allowed: %s", model, strings.Join(v.models, ", ")))
		return ""
	}
	return model
}

func sanitizeHistory(in []historyPayload) []entity.HistoryMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]entity.HistoryMessage, 0, len(in))
	for _, h := range in {
		parts := make([]entity.Part, 0, len(h.Parts))
		for _, p := range h.Parts {
			parts = append(parts, entity.Part{Text: Sanitize(p.Text)})
		}
		out = append(out, entity.HistoryMessage{Role: entity.HistoryRole(h.Role), Parts: parts})
	}
	return out
}

// fieldPath 去掉根结构体名，"payload.history[0].role" -> "history[0].role"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
