package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dossier"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/logger"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/panel"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	defaultMaxRetries   = 2
	defaultRetryDelay   = time.Second
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Assessor is the Gemini-backed panel expert. Malformed model output is
// retried a bounded number of times before the expert is reported as failed;
// the panel then proceeds with whatever other experts produced.
type Assessor struct {
	generator  contentGenerator
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
	maxLogLen  int
}

func NewAssessor(generator contentGenerator, log *zap.Logger, maxRetries int) *Assessor {
	if log == nil {
		log = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	return &Assessor{
		generator:  generator,
		logger:     log,
		maxRetries: maxRetries,
		retryDelay: defaultRetryDelay,
		maxLogLen:  defaultMaxLogLength,
	}
}

func (a *Assessor) Assess(ctx context.Context, req panel.Request) (*panel.Assessment, error) {
	prompt, err := a.buildPrompt(req)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("gemini assessment request",
		zap.String(logger.FieldDossier, req.Dossier.ID),
		zap.String("category", req.Category.Name),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, a.maxLogLen)),
	)

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			if err := utils.WaitFor(ctx, a.retryDelay); err != nil {
				return nil, err
			}
			a.logger.Debug("retrying gemini assessment",
				zap.String(logger.FieldDossier, req.Dossier.ID),
				zap.String("category", req.Category.Name),
				zap.Int("attempt", attempt),
			)
		}

		raw, err := a.generator.GenerateContent(ctx, prompt)
		if err != nil {
			lastErr = err
			continue
		}

		a.logger.Debug("gemini assessment response",
			zap.String(logger.FieldDossier, req.Dossier.ID),
			zap.String("category", req.Category.Name),
			zap.String("response_preview", logger.TruncateForLog(raw, a.maxLogLen)),
		)

		assessment, err := parseAssessment(raw)
		if err != nil {
			lastErr = fmt.Errorf("malformed expert output: %w", err)
			continue
		}

		assessment.DossierID = req.Dossier.ID
		assessment.Category = req.Category.Name
		assessment.Raw = raw
		return assessment, nil
	}

	return nil, lastErr
}

func (a *Assessor) buildPrompt(req panel.Request) (string, error) {
	evidence := make([]map[string]any, 0, len(req.Fragments))
	for _, f := range req.Fragments {
		evidence = append(evidence, map[string]any{
			"content": f.Content,
			"tags":    f.Tags,
		})
	}
	for name, fact := range req.Facts {
		if fact.Known {
			evidence = append(evidence, map[string]any{
				"content": fmt.Sprintf("external lookup %s: %s", name, fact.Value),
			})
		}
	}

	evidenceJSON, err := json.MarshalIndent(evidence, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal evidence payload: %w", err)
	}

	dossierJSON, err := json.MarshalIndent(req.Dossier, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal dossier payload: %w", err)
	}

	gaps := make([]map[string]string, 0, len(req.GapContext))
	for _, v := range req.GapContext {
		gaps = append(gaps, map[string]string{
			"requirement": v.Requirement.Text,
			"note":        v.Note,
		})
	}
	gapsJSON, err := json.MarshalIndent(gaps, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal gap payload: %w", err)
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{EXPERT_NAME}}", req.Category.Name)
	prompt = strings.ReplaceAll(prompt, "{{EXPERT_DESCRIPTION}}", req.Category.Description)
	prompt = strings.ReplaceAll(prompt, "{{EVIDENCE_JSON}}", string(evidenceJSON))
	prompt = strings.ReplaceAll(prompt, "{{DOSSIER_JSON}}", string(dossierJSON))
	prompt = strings.ReplaceAll(prompt, "{{GAPS_JSON}}", string(gapsJSON))
	return prompt, nil
}

type rawVerdict struct {
	Requirement string `mapstructure:"requirement"`
	Level       string `mapstructure:"level"`
	Note        string `mapstructure:"note"`
}

type rawAssessment struct {
	Verdicts   []rawVerdict `mapstructure:"verdicts"`
	Effort     string       `mapstructure:"effort"`
	Confidence float64      `mapstructure:"confidence"`
}

// parseAssessment tolerates the usual model sloppiness: fenced code blocks
// and numbers or booleans arriving as strings.
func parseAssessment(raw string) (*panel.Assessment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse response json: %w", err)
	}

	var decoded rawAssessment
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &decoded,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build response decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	assessment := &panel.Assessment{
		Effort:     strings.ToLower(strings.TrimSpace(decoded.Effort)),
		Confidence: decoded.Confidence,
	}
	for _, v := range decoded.Verdicts {
		assessment.Verdicts = append(assessment.Verdicts, panel.RequirementVerdict{
			Requirement: reqFromText(v.Requirement),
			Level:       strings.ToLower(strings.TrimSpace(v.Level)),
			Note:        strings.TrimSpace(v.Note),
		})
	}

	return assessment, nil
}

func reqFromText(text string) dossier.Requirement {
	return dossier.Requirement{Text: strings.TrimSpace(text)}
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
