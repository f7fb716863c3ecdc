package classifier

import "strings"

const messagePlaceholder = "{message}"

const defaultPrompt = `You are a classification AI for a personal second brain system. Analyze the following message and classify it into one of these categories:
- People: Information about people, relationships, contacts
- Projects: Work projects, personal projects, tasks with goals
- Ideas: Brainstorming, creative thoughts, concepts
- Admin: Administrative tasks, scheduling, logistics

Extract the following fields if present:
- name: A brief title/name for this item
- status: Current state (e.g., open, in_progress, completed, waiting)
- next_action: Next step to take
- notes: Additional details or context

Return ONLY a JSON object with this structure:
{
    "category": "People|Projects|Ideas|Admin",
    "name": "Brief title",
    "status": "status",
    "next_action": "next action",
    "notes": "additional notes",
    "confidence": 0-100
}

Message to classify: {message}
`

func buildPrompt(template string, text string) string {
	if !strings.Contains(template, messagePlaceholder) {
		return template + "\n\nMessage to classify: " + text
	}
	return strings.ReplaceAll(template, messagePlaceholder, text)
}
