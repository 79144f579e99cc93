// Package advisory provides LLM-based manuscript screening for the submission service.
//
// This package defines the abstractions and prompt engineering required to
// produce an advisory assessment of a submitted paper using large language
// models (OpenAI, Anthropic). The assessment estimates a plagiarism score,
// flags potentially unoriginal passages, and predicts an acceptance
// probability with reasoning.
//
// The assessment is strictly advisory: a failed or unavailable provider never
// blocks a submission, and no score ever drives an automatic status change.
//
// Example usage:
//
//	assessor, err := advisory.NewAssessor(cfg)
//	req := advisory.AssessmentRequest{
//		Title:    "Adaptive Mesh Refinement for Plasma Simulations",
//		Abstract: "We present ...",
//		Keywords: []string{"plasma", "simulation"},
//		Excerpt:  manuscriptText,
//	}
//	result, err := assessor.Assess(ctx, req)
package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openscholar/submission-service/internal/domain"
)

// AssessmentRequest contains the paper material submitted for screening.
type AssessmentRequest struct {
	// Title is the paper title.
	Title string

	// Abstract is the paper abstract.
	Abstract string

	// Keywords are the author-supplied keywords.
	Keywords []string

	// Authors are the author names, used only as context for the model.
	Authors []string

	// Excerpt is plain text extracted from the manuscript. Callers should
	// truncate it with TruncateExcerpt before building a request.
	Excerpt string
}

// Assessor defines the interface for LLM-based manuscript screening.
//
// Implementations should handle provider-specific API calls, response parsing,
// and error handling while conforming to this unified interface.
type Assessor interface {
	// Assess screens the given paper material and returns an advisory
	// assessment. The context should be used for cancellation and deadline
	// propagation.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Parse the LLM response as JSON
	//   - Return wrapped errors with provider context
	Assess(ctx context.Context, req AssessmentRequest) (*domain.Assessment, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}

// verdict is the expected JSON structure from LLM responses.
type verdict struct {
	PlagiarismScore       float64  `json:"plagiarism_score"`
	HighlightedSections   []string `json:"highlighted_sections"`
	AcceptanceProbability float64  `json:"acceptance_probability"`
	Reasoning             string   `json:"reasoning"`
}

// parseVerdict parses the model's JSON verdict and validates the score ranges.
func parseVerdict(content []byte) (*domain.Assessment, error) {
	var v verdict
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, fmt.Errorf("failed to parse assessment JSON: %w", err)
	}

	if v.PlagiarismScore < 0 || v.PlagiarismScore > 1 {
		return nil, fmt.Errorf("plagiarism_score %v out of range [0,1]", v.PlagiarismScore)
	}
	if v.AcceptanceProbability < 0 || v.AcceptanceProbability > 1 {
		return nil, fmt.Errorf("acceptance_probability %v out of range [0,1]", v.AcceptanceProbability)
	}

	plagiarism := v.PlagiarismScore
	probability := v.AcceptanceProbability
	return &domain.Assessment{
		PlagiarismScore:       &plagiarism,
		HighlightedSections:   v.HighlightedSections,
		AcceptanceProbability: &probability,
		Reasoning:             v.Reasoning,
	}, nil
}

// TruncateExcerpt limits manuscript text to maxChars characters so the prompt
// stays within the provider's context window. Truncation happens on a rune
// boundary. A non-positive maxChars returns the text unchanged.
func TruncateExcerpt(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}

// BuildAssessmentPrompt builds the system and user prompts for manuscript
// screening. The system prompt instructs the LLM on its role and response
// format. The user prompt carries the paper material.
func BuildAssessmentPrompt(req AssessmentRequest) (systemPrompt, userPrompt string) {
	systemPrompt = buildSystemPrompt()
	userPrompt = buildUserPrompt(req)
	return systemPrompt, userPrompt
}

// buildSystemPrompt constructs the system-level instructions for the LLM.
func buildSystemPrompt() string {
	var sb strings.Builder

	sb.WriteString("You are an academic editorial screening assistant with deep expertise ")
	sb.WriteString("in scholarly publishing. Your task is to screen a submitted manuscript ")
	sb.WriteString("and produce an advisory assessment for the editorial team. Your output ")
	sb.WriteString("is a signal for human editors, never a decision.\n\n")

	sb.WriteString("You MUST respond with valid JSON in exactly this format:\n")
	sb.WriteString(`{"plagiarism_score": 0.0, "highlighted_sections": ["passage"], "acceptance_probability": 0.0, "reasoning": "Brief explanation"}`)
	sb.WriteString("\n\n")

	sb.WriteString("Guidelines for the assessment:\n")
	sb.WriteString("1. plagiarism_score is your estimate, between 0 and 1, of the fraction of unoriginal or derivative content.\n")
	sb.WriteString("2. highlighted_sections quotes short passages that look unoriginal, templated, or lifted from common sources. Use an empty list when nothing stands out.\n")
	sb.WriteString("3. acceptance_probability is your estimate, between 0 and 1, that the paper would pass peer review at a selective venue.\n")
	sb.WriteString("4. reasoning explains the main strengths and weaknesses in two or three sentences.\n")
	sb.WriteString("5. Judge novelty, methodological rigor, and clarity. Do not judge formatting.\n")
	sb.WriteString("6. Never let author names or affiliations influence the scores.\n")

	return sb.String()
}

// buildUserPrompt constructs the user-level prompt carrying the paper material.
func buildUserPrompt(req AssessmentRequest) string {
	var sb strings.Builder

	sb.WriteString("Screen the following manuscript submission.\n\n")

	sb.WriteString("Title: ")
	sb.WriteString(req.Title)
	sb.WriteString("\n")

	if len(req.Authors) > 0 {
		sb.WriteString("Authors: ")
		sb.WriteString(strings.Join(req.Authors, ", "))
		sb.WriteString("\n")
	}

	if len(req.Keywords) > 0 {
		sb.WriteString("Keywords: ")
		sb.WriteString(strings.Join(req.Keywords, ", "))
		sb.WriteString("\n")
	}

	sb.WriteString("\nAbstract:\n---\n")
	sb.WriteString(req.Abstract)
	sb.WriteString("\n---\n")

	if req.Excerpt != "" {
		sb.WriteString("\nManuscript excerpt:\n---\n")
		sb.WriteString(req.Excerpt)
		sb.WriteString("\n---\n")
	}

	return sb.String()
}
