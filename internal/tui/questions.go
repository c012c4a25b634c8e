package tui

import (
	"fmt"
	"strings"
)

// QuestionGroup is one titled block of the requirements interview.
type QuestionGroup struct {
	Title     string
	Questions []string
}

// DefaultQuestions returns the interview used to seed a run: general
// planning, then the hardware, connectivity, platform and application
// design layers, then operations.
func DefaultQuestions() []QuestionGroup {
	return []QuestionGroup{
		{
			Title: "1. Planning & General Requirements",
			Questions: []string{
				"What is the name of the system or project?",
				"What is the main goal of the system? (e.g. agricultural monitoring, smart home, asset tracking)",
				"Which specific problem does it solve for users or the business?",
				"Who are the end users? (e.g. operations engineers, managers, residents)",
				"What is the project scope? (monitoring only, or remote control of devices too?)",
				"Are there time or budget constraints?",
			},
		},
		{
			Title: "2.1. Design - Hardware",
			Questions: []string{
				"Which sensors or actuators will the system use? (e.g. temperature, humidity, GPS, relays)",
				"How will devices be powered? (battery, mains, solar)",
				"Where will the devices operate? (indoors, outdoors, industrial plant)",
				"Are there enclosure or durability requirements? (e.g. waterproof, dustproof IP67)",
			},
		},
		{
			Title: "2.2. Design - Connectivity",
			Questions: []string{
				"How will device data be transmitted? (WiFi, Bluetooth/BLE, 4G/5G, LoRaWAN)",
				"How often will data be sent? (every second, minute, hour)",
				"Which messaging protocol is expected? (MQTT, HTTP, CoAP, other)",
			},
		},
		{
			Title: "2.3. Design - Platform & Data",
			Questions: []string{
				"Where will collected data be processed and stored? (cloud, local server, edge)",
				"Is integration with a specific cloud platform required? (AWS, Azure, Google Cloud)",
				"How long must data be retained, and is historical access required?",
			},
		},
		{
			Title: "2.4. Design - Application & UI/UX",
			Questions: []string{
				"How will users interact with the system? (web dashboard, mobile app, email/SMS alerts)",
				"Which reports, statistics or charts are needed?",
				"What should the user interface feel like? (simple, modern, real-time)",
			},
		},
		{
			Title: "3. Operations & Security",
			Questions: []string{
				"Are there special security requirements? (data encryption, secure device authentication)",
				"Are over-the-air (OTA) firmware updates required?",
				"How will the state of a device fleet be managed and monitored? (battery, connectivity)",
			},
		},
	}
}

// Compose renders answered groups as the Markdown system request. answers
// is indexed like groups; missing or blank answers are marked as such.
func Compose(groups []QuestionGroup, answers [][]string) string {
	var b strings.Builder
	for gi, group := range groups {
		fmt.Fprintf(&b, "## %s\n", group.Title)
		for qi, question := range group.Questions {
			answer := ""
			if gi < len(answers) && qi < len(answers[gi]) {
				answer = strings.TrimSpace(answers[gi][qi])
			}
			if answer == "" {
				answer = "(no answer)"
			}
			fmt.Fprintf(&b, "**Question:** %s\n**Answer:** %s\n\n", question, answer)
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func questionCount(groups []QuestionGroup) int {
	total := 0
	for _, g := range groups {
		total += len(g.Questions)
	}
	return total
}
