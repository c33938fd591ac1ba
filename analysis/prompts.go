package analysis

import (
	"fmt"

	"github.com/plainterms/plainterms/llm"
)

// Prompt composition is pure and deterministic: the same text and options
// always yield byte-identical messages. All variability comes from the model.

// roleContext maps a user role to how the reader is described to the model.
var roleContext = map[UserRole]string{
	RoleIndividual: "a regular person without legal expertise",
	RoleBusiness:   "a small business owner",
	RoleTenant:     "someone looking to rent property",
	RoleBorrower:   "someone seeking a loan",
	RoleEmployee:   "someone reviewing an employment offer",
}

// complexityInstructions maps a complexity level to tone instructions.
var complexityInstructions = map[ComplexityLevel]string{
	ComplexitySimple:   "Use very simple language, avoid legal jargon, explain everything in everyday terms",
	ComplexityDetailed: "Provide moderate detail with some legal terms explained in parentheses",
	ComplexityExpert:   "Include relevant legal terminology with explanations",
}

// analysisSystemPrompt instructs the model to emit JSON only.
const analysisSystemPrompt = `You are a legal document expert who simplifies complex legal documents into clear, accessible guidance.

Always respond with a single valid JSON object. Do not include any text outside the JSON object.`

// analysisUserPrompt is the user prompt template for document analysis.
// Placeholders: reader description, document type, tone instruction, document text.
const analysisUserPrompt = `You are helping %s understand a %s.

INSTRUCTIONS:
- %s
- Focus on practical implications and real-world consequences
- Highlight potential risks and red flags
- Provide actionable recommendations
- Be empathetic and supportive in tone

DOCUMENT TEXT:
%s

Provide a comprehensive analysis in the following JSON format:
{
    "summary": "A clear, concise summary of what this document is about and its main purpose",
    "key_points": ["The 5-7 most important points from the document, in plain English"],
    "risks_and_concerns": ["Potential risks, unfavorable terms, or red-flag clauses"],
    "recommendations": ["Specific actions to take, questions to ask, things to negotiate or clarify"],
    "simplified_explanation": "A paragraph explaining the document as if talking to a friend, using analogies and simple examples where helpful"
}

Respond ONLY with valid JSON.`

// questionSystemPrompt grounds answers strictly in the provided document.
const questionSystemPrompt = `You are a helpful legal assistant. Answer questions using ONLY the provided document text. If the document does not contain the answer, say so.

Always respond with a single valid JSON object. Do not include any text outside the JSON object.`

// questionUserPrompt is the user prompt template for grounded Q&A.
// Placeholders: document text, question.
const questionUserPrompt = `DOCUMENT TEXT:
%s

USER QUESTION:
%s

Provide a helpful answer in the following JSON format:
{
    "answer": "A clear, helpful answer to the user's question in simple language",
    "relevant_sections": ["Specific quotes or sections from the document that support your answer"],
    "confidence_level": "high, medium, or low - how confident you are in this answer"
}

Guidelines:
- Use simple, non-legal language
- Be specific and practical
- If you're not certain, say so
- Focus on what this means for the user personally

Respond ONLY with valid JSON.`

// AnalysisMessages composes the completion messages for analyzing text.
// Unknown enum values interpolate as opaque strings, so forward-compatible
// extension of the enumerations never hard-fails.
func AnalysisMessages(text string, opts Options, maxChars int) []llm.Message {
	opts = opts.withDefaults()

	reader, ok := roleContext[opts.UserRole]
	if !ok {
		reader = fmt.Sprintf("a person acting as %q", string(opts.UserRole))
	}
	tone, ok := complexityInstructions[opts.ComplexityLevel]
	if !ok {
		tone = "Use clear, simple language"
	}

	if maxChars <= 0 {
		maxChars = DefaultMaxAnalysisChars
	}

	user := fmt.Sprintf(analysisUserPrompt,
		reader,
		string(opts.DocumentType),
		tone,
		TruncateForPrompt(text, maxChars))

	return []llm.Message{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: user},
	}
}

// QuestionMessages composes the completion messages for a grounded question.
func QuestionMessages(question, text string, maxChars int) []llm.Message {
	if maxChars <= 0 {
		maxChars = DefaultMaxQuestionChars
	}

	user := fmt.Sprintf(questionUserPrompt,
		TruncateForPrompt(text, maxChars),
		question)

	return []llm.Message{
		{Role: "system", Content: questionSystemPrompt},
		{Role: "user", Content: user},
	}
}
