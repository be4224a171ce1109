package llm

import (
	"fmt"
	"strings"
)

// SystemInstruction defines the judging task and the required response shape.
const SystemInstruction = `You are an expert at analyzing pull requests and JIRA tickets. Your task is to:
1. Determine how well the changes in a pull request align with the requirements in a JIRA ticket
2. Provide a confidence score between 0 and 1 (1 means perfect alignment)
3. List specific findings that support your score
4. Identify any potential misalignments or concerns

Format your response as JSON with the following structure:
{
  "confidence_score": number,
  "summary": "Brief summary of analysis",
  "findings": ["finding 1", "finding 2", ...],
  "concerns": ["concern 1", "concern 2", ...]
}`

// UserMessage embeds the ticket and the diff verbatim.
func UserMessage(ticket Ticket, diff string) string {
	parts := []string{
		fmt.Sprintf("JIRA Ticket (%s):\nTitle: %s\nDescription: %s", ticket.ID, ticket.Summary, ticket.Description),
		"Pull Request Changes:\n" + diff,
	}
	return strings.Join(parts, "\n\n")
}
