package ai

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// OfflineModel is the model name reported by the offline assistant
const OfflineModel = "offline-assistant"

// OfflineClient answers from fixed keyword rules. It never fails and is used
// when no provider credential is configured.
type OfflineClient struct{}

// NewOfflineClient creates the deterministic offline assistant
func NewOfflineClient() *OfflineClient {
	return &OfflineClient{}
}

// Model returns the offline model name
func (c *OfflineClient) Model() string {
	return OfflineModel
}

// Complete picks a canned reply from keywords in the latest user message
func (c *OfflineClient) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ServiceError{Provider: "offline", Err: err}
	}

	prompt := BuildPrompt(messages)
	latest := latestUserMessage(messages)

	var reply string
	switch {
	case hasSystem(messages, analysisInstructions):
		reply = offlineAnalysis(latest)
	case hasSystem(messages, titleInstructions):
		reply = offlineTitle(latest)
	default:
		reply = offlineChatReply(latest)
	}

	return &Completion{
		Content: reply,
		Model:   OfflineModel,
		Usage:   estimateUsage(prompt, reply),
	}, nil
}

// AnalyzeDocument runs the fixed analysis template through Complete
func (c *OfflineClient) AnalyzeDocument(ctx context.Context, text, category string) (*Completion, error) {
	return c.Complete(ctx, AnalysisMessages(text, category))
}

func latestUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func hasSystem(messages []Message, instructions string) bool {
	for _, m := range messages {
		if m.Role == RoleSystem && strings.HasPrefix(m.Content, instructions) {
			return true
		}
	}
	return false
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func offlineChatReply(message string) string {
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower, "side effect", "adverse", "reaction"):
		return "Most medications can cause side effects, and many are mild and temporary. " +
			"Common ones include nausea, headache, dizziness or drowsiness. " +
			"Seek medical help right away for swelling, difficulty breathing or a severe rash. " +
			"Your pharmacist can review the leaflet that came with your medicine with you."
	case containsAny(lower, "medication", "medicine", "drug", "dose", "dosage", "pill", "tablet", "prescription"):
		return "Always take medications exactly as prescribed and read the patient information leaflet. " +
			"Do not change the dose or stop a medicine without talking to your doctor or pharmacist, " +
			"and tell them about every other medicine and supplement you take so they can check for interactions."
	case containsAny(lower, "blood", "cholesterol", "glucose", "hemoglobin", "haemoglobin", "platelet"):
		return "Blood test results are usually compared against a reference range printed next to each value. " +
			"A value slightly outside the range is not always a problem, since hydration, fasting and recent activity can affect it. " +
			"Your doctor will interpret the results together with your symptoms and history."
	case containsAny(lower, "report", "result", "finding", "scan", "x-ray", "xray", "mri"):
		return "I can help explain the terms used in your report. " +
			"Findings are what the examiner observed, and the impression or conclusion is their overall interpretation. " +
			"Please discuss anything unclear or concerning with the clinician who ordered the test."
	case containsAny(lower, "hello", "hi ", "hey", "good morning", "good evening") || strings.TrimSpace(lower) == "hi":
		return "Hello! I can help you understand your medical reports and answer general questions about medications. " +
			"What would you like to know?"
	default:
		return "Thank you for your question. I can share general health information, but I cannot provide a diagnosis. " +
			"For advice about your specific situation, please consult a qualified healthcare professional."
	}
}

func offlineTitle(message string) string {
	words := strings.FieldsFunc(message, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})
	if len(words) > 6 {
		words = words[:6]
	}
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	title := strings.Join(words, " ")
	if r := []rune(title); len(r) > TitleMaxLength {
		title = strings.TrimSpace(string(r[:TitleMaxLength]))
	}
	return title
}

func offlineAnalysis(prompt string) string {
	doc := prompt
	if i := strings.Index(prompt, "Document text:"); i >= 0 {
		doc = prompt[i+len("Document text:"):]
	}
	lower := strings.ToLower(doc)

	var lines []string
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if len([]rune(line)) < 4 {
			continue
		}
		if r := []rune(line); len(r) > 120 {
			line = string(r[:117]) + "..."
		}
		lines = append(lines, line)
		if len(lines) == 3 {
			break
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summary: This document contains %d words and was reviewed automatically without a live AI model. ", len(strings.Fields(doc)))
	b.WriteString("The points below restate what the document mentions and are general information, not a diagnosis.\n\n")

	b.WriteString("Key Findings:\n")
	if len(lines) == 0 {
		b.WriteString("- The document text was received but no distinct statements could be identified.\n")
	}
	for _, line := range lines {
		fmt.Fprintf(&b, "- Noted in the document: %s\n", line)
	}

	b.WriteString("\nRecommendations:\n")
	b.WriteString("- Review these results with the clinician who ordered the test.\n")
	b.WriteString("- Keep a copy of this report for future appointments.\n")
	b.WriteString("- Ask about any value that is marked outside its reference range.\n")

	b.WriteString("\nRisk Factors:\n")
	if containsAny(lower, "high", "elevated", "low", "abnormal", "positive", "deficien") {
		b.WriteString("- Some values are described as high, low or abnormal and may need follow-up.\n")
	} else {
		b.WriteString("- No specific risk factors could be identified automatically.\n")
	}

	return b.String()
}
