package oracle

import (
	"strings"
)

const systemPrompt = `You are an assistant that analyses utility provider web portals to find billing history.

Rules:
1. Respond with a single JSON object matching the requested structure
2. Never invent data that is not visible in the provided content
3. Dates use MM/DD/YYYY and amounts are plain numbers without currency symbols
4. Use the exact URLs you were given; do not construct new ones`

var taskInstructions = map[Task]string{
	TaskSufficiency: `Decide whether this page already shows enough billing history to stop exploring.
Sufficient means at least two distinct months of bills, or a current and a previous bill amount.

Return:
{"has_sufficient_billing_data": bool, "months_of_data_found": int, "data_quality": "excellent|good|fair|poor|none",
 "billing_entries_found": [{"date": "MM/DD/YYYY", "amount": number, "description": string, "type": "bill|payment"}],
 "evaluation_reason": string}`,

	TaskLinkRanking: `Rank the candidate links by how likely each leads to billing, transaction or payment history.
Score 0-100. Sidebar links naming history, transactions or billing usually score highest.

Return:
{"ranked_links": [{"url": string, "score": int, "reasoning": string}]}`,

	TaskExplorationStrategy: `Plan the next step of exploring this portal for billing history.
Choose at most three links from the list, highest priority first (1 = most promising).

Return:
{"current_page_has_billing": bool, "exploration_needed": bool,
 "next_links": [{"url": string, "text": string, "reason": string, "priority": int}], "strategy": string}`,

	TaskHTMLExtraction: `Extract every bill and payment shown in this page markup.

Return:
{"bills": [{"date": "MM/DD/YYYY", "amount": number, "description": string, "type": "bill|payment"}],
 "account_info": {"account_number": string}}`,

	TaskVisionExtraction: `Read the attached screenshot of a utility portal and transcribe every visible bill or payment row.

Return:
{"bills": [{"date": "MM/DD/YYYY", "amount": number, "description": string, "type": "bill|payment"}],
 "account_info": {"account_number": string}}`,

	TaskLoginForm: `Find the login form in this page markup and give CSS selectors for its fields.

Return:
{"found": bool, "username_field": string, "password_field": string, "submit_button": string, "confidence": number between 0 and 1}`,
}

// buildPrompt returns the system and user prompts for a task.
func buildPrompt(task Task, in Input) (string, string) {
	var prompt strings.Builder

	prompt.WriteString(taskInstructions[task])
	prompt.WriteString("\n")

	if in.URL != "" {
		prompt.WriteString("\n## Page URL\n")
		prompt.WriteString(in.URL)
		prompt.WriteString("\n")
	}

	if in.Context != "" {
		prompt.WriteString("\n## Candidate Links\n```json\n")
		prompt.WriteString(in.Context)
		prompt.WriteString("\n```\n")
	}

	if in.Content != "" {
		prompt.WriteString("\n## Page Content\n```\n")
		prompt.WriteString(in.Content)
		prompt.WriteString("\n```\n")
	}

	return systemPrompt, prompt.String()
}
