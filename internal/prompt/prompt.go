// Package prompt holds the static LLM prompt templates for podcast
// generation, plus the tone and duration substitution tables.
//
// Templates use {placeholder} markers filled in by the Render* helpers.
// They are pure data — all calling policy (token limits, fallbacks) lives in
// the script package.
package prompt

import (
	"fmt"
	"strings"

	"github.com/kotomo-ai/kotomo/pkg/podcast"
)

// TopicValidation is the prompt for the topic-validation call.
const TopicValidation = `You are a content validator for a podcast generation system.

Analyze the given topic and determine if it's appropriate for an educational podcast.

Rules:
- Accept topics that are educational, informative, or intellectually interesting
- Reject topics that are harmful, illegal, hateful, or inappropriate
- Clean up the topic by fixing typos and clarifying vague requests
- If the topic is too broad, suggest a more focused angle

Respond with a JSON object containing:
- isValid: boolean
- cleanedTopic: string (the cleaned/improved topic)
- reason: string (only if invalid, explain why)`

// Research is the prompt template for the research call.
const Research = `You are a research assistant preparing notes for a podcast episode.

Topic: {topic}
Tone: {tone}
Duration: {duration}

Generate comprehensive research notes that will help podcast hosts discuss this topic naturally.

Include:
- 5-8 key points that should be covered
- 3-5 interesting facts or statistics
- Background context that provides foundation for the discussion

Keep the research factual and well-organized. The hosts will use these notes to have an engaging conversation.`

// Script is the prompt template for the script-writing call.
const Script = `You are a podcast script writer creating a two-person dialogue.

Research Notes:
{research}

Podcast Settings:
- Tone: {tone}
- Duration: {duration}

Create a natural, engaging podcast script with two hosts who have distinct personalities.

Speaker Guidelines:
- Host 1: The curious questioner who drives the conversation forward
- Host 2: The knowledgeable explainer who provides insights and answers

Emotion Tags (use one per line):
- curious, enthusiastic, thoughtful, surprised, amused, serious, excited, contemplative

Script Requirements:
- Start with a brief intro that hooks the listener
- Flow naturally like a real conversation
- Include moments of discovery and "aha" moments
- End with a satisfying conclusion or call-to-action
- Each line should feel speakable (not too long, natural phrasing)

Return a JSON object with:
- title: string (catchy episode title)
- speakers: array of {name, personality, voiceId} (use "voice1" and "voice2" as voiceId placeholders)
- lines: array of {speaker, text, emotion}`

// toneDescriptions expands a tone enum into the phrasing used in prompts.
var toneDescriptions = map[podcast.Tone]string{
	podcast.ToneCasual:      "relaxed, friendly, conversational with humor",
	podcast.ToneEducational: "informative, clear, focused on learning",
	podcast.ToneHumorous:    "playful, witty, entertaining while still informative",
}

// ToneDescription returns the prompt phrasing for a tone. Unknown tones are
// passed through verbatim so a prompt is never silently broken.
func ToneDescription(t podcast.Tone) string {
	if d, ok := toneDescriptions[t]; ok {
		return d
	}
	return string(t)
}

// RenderValidation builds the full topic-validation prompt for a raw topic.
func RenderValidation(topic string) string {
	return fmt.Sprintf("%s\n\nTopic to validate: %q\n\nRespond with valid JSON only.", TopicValidation, topic)
}

// RenderResearch builds the research prompt for a cleaned topic.
func RenderResearch(topic string, tone podcast.Tone, duration podcast.Duration) string {
	body := strings.NewReplacer(
		"{topic}", topic,
		"{tone}", ToneDescription(tone),
		"{duration}", string(duration),
	).Replace(Research)
	return body + "\n\nRespond with a JSON object containing: topic, keyPoints (array), facts (array), context (string). JSON only, no markdown."
}

// RenderScript builds the script prompt from serialized research notes.
// researchJSON is the pretty-printed JSON of the research notes.
func RenderScript(researchJSON string, tone podcast.Tone, duration podcast.Duration) string {
	min, max := duration.LineRange()
	body := strings.NewReplacer(
		"{research}", researchJSON,
		"{tone}", ToneDescription(tone),
		"{duration}", fmt.Sprintf("%s (target %d-%d lines)", duration, min, max),
	).Replace(Script)
	return body + "\n\nRespond with valid JSON only. The JSON should have: title (string), speakers (array of {name, personality, voiceId}), lines (array of {speaker, text, emotion})."
}
