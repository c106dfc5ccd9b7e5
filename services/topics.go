package services

import (
	"math/rand"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Debate topics handed out when a battle is created. Kept short and
// opinion-bait on purpose.
var debateTopics = []string{
	"pineapple belongs on pizza",
	"cats are better than dogs",
	"remote work beats the office",
	"social media does more harm than good",
	"breakfast is the most important meal",
	"video games are a sport",
	"money can buy happiness",
	"aliens have already visited earth",
	"school should start at noon",
	"tabs are better than spaces",
}

var topicTitler = cases.Title(language.English)

// RandomTopic picks a topic for a new battle.
func RandomTopic() string {
	return debateTopics[rand.Intn(len(debateTopics))]
}

// TopicTitle returns the display form of a topic.
func TopicTitle(topic string) string {
	return topicTitler.String(topic)
}
