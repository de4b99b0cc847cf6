package lus

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/booking"
)

const classifyIntentPrompt = `You classify messages sent to a medical clinic's appointment booking assistant.

Answer with exactly one label and nothing else:
scheduling       - the patient wants to book a new appointment
scheduling_info  - the patient is providing or correcting booking details (a date, a time, a doctor, their name)
greeting         - a greeting with no other request
farewell         - the patient is saying goodbye or thanking at the end
info_query       - a question about the clinic, its specialties or its professionals
specialty_pick   - the patient is choosing a specialty from a list they were shown
other            - anything unrelated to booking
unclear          - you cannot tell

If a booking is already in progress and the message answers the assistant's last question, prefer scheduling_info.`

const extractFieldsPrompt = `You extract appointment booking details from a conversation between a patient and a clinic assistant.
Later corrections in the dialogue override earlier values.

Return only a JSON object with these keys, using null for anything not mentioned:
{"professional_name": string|null, "specialty": string|null, "date_preference": string|null,
 "shift_preference": "morning"|"afternoon"|null, "specific_time": "HH:MM"|null,
 "service_type": string|null, "patient_name": string|null}

Keep date_preference verbatim as the patient said it ("day 5", "tomorrow", "the earliest available", "10/06").
Use 24-hour HH:MM for specific_time.`

const translateDatePrompt = `Today is %s (%s). Convert the patient's date expression into an absolute calendar date.
Rules:
- "day N" means the next day N: this month if it has not passed yet, otherwise next month.
- DD/MM or DD/MM/YYYY is day first.
Answer with the date as YYYY-MM-DD only, or the single word invalid if the expression is not a date.`

const classifyConfirmationPrompt = `The assistant showed the patient a summary of their appointment and asked them to confirm.
Classify the patient's reply with exactly one label and nothing else:
confirmed          - the patient agrees
rejected_generic   - the patient disagrees without saying what should change
rejected_with_data - the patient disagrees and gives the new value (a time, date, doctor or specialty)
unclear            - you cannot tell`

const utterancePrompt = `You write short, warm chat messages for a medical clinic's booking assistant.
Write a single message of at most two sentences in the patient's language. Never invent appointment details,
dates, times or names that are not in the facts. Ask at most one question.`

// UtteranceKind selects which message the language service writes.
type UtteranceKind string

const (
	UtteranceClarify   UtteranceKind = "clarify"
	UtteranceGreeting  UtteranceKind = "greeting"
	UtteranceFarewell  UtteranceKind = "farewell"
	UtteranceOther     UtteranceKind = "other"
	UtteranceFallback  UtteranceKind = "fallback"
	UtteranceInfoReply UtteranceKind = "info_reply"
)

var utteranceGoals = map[UtteranceKind]string{
	UtteranceClarify:   "Ask the patient for the missing piece of information named in the facts, and only that.",
	UtteranceGreeting:  "Greet the patient and offer to help book an appointment.",
	UtteranceFarewell:  "Say goodbye politely.",
	UtteranceOther:     "Explain kindly that you can only help with booking medical appointments.",
	UtteranceFallback:  "Say you did not understand and ask the patient to rephrase.",
	UtteranceInfoReply: "Answer the patient's question using only the facts given.",
}

func utteranceRequest(kind UtteranceKind, params map[string]string) string {
	var b strings.Builder
	goal, ok := utteranceGoals[kind]
	if !ok {
		goal = "Reply helpfully to the patient."
	}
	b.WriteString("Goal: ")
	b.WriteString(goal)
	b.WriteString("\nFacts:\n")
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.TrimSpace(params[k]) == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", k, params[k])
	}
	return b.String()
}

func formatHistory(history []booking.Message) string {
	var b strings.Builder
	for _, m := range history {
		role := "Patient"
		if m.Role == booking.RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, strings.TrimSpace(m.Text))
	}
	return b.String()
}

func datePrompt(today time.Time) string {
	return fmt.Sprintf(translateDatePrompt, today.Format("2006-01-02"), today.Weekday())
}
