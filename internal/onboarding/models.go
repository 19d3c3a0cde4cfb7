// Package onboarding drives the conversational flow: it decides, per incoming
// chat message, whether the sender is verifying a code, answering an identity
// question, or asking a question as an authorized principal.
package onboarding

// Message is one inbound chat message, already stripped of transport framing.
type Message struct {
	ExternalID  string
	DisplayName string
	Utterance   string
}

// Reply is what goes back to the chat platform. QuickReplies become tappable
// suggestion chips. Business failures are still replies, never HTTP errors.
type Reply struct {
	Text         string
	QuickReplies []string
}

// The retry chip shown while an answer is still being prepared.
const RetryLabel = "Check answer"

// Reply templates. Kept as constants so tests and transports agree verbatim.
const (
	promptVerify = "Welcome! To get started, please enter your verification code (format: XXX-XXX-XXX-XXX). " +
		"If you don't have one yet, please contact your administrator."
	promptIdentityFullName   = "For security, please reply with your full name as registered."
	promptIdentityEmployeeID = "For security, please reply with your employee ID."
	promptIdentityEmail      = "For security, please reply with your registered email address."
	promptIdentityPrivateID  = "For security, please reply with your private ID number."

	replyCodeNotFound    = "That verification code was not recognized. Please check it and try again."
	replyCodeExhausted   = "That verification code has already been used."
	replyCodeExpired     = "That verification code has expired. Please request a new one."
	replyCodeDisabled    = "That verification code has been disabled. Please contact your administrator."
	replyIdentityFailed  = "Identity verification failed. Please check your code and details, then start again."
	replyAlreadyVerified = "You are already verified. Just type your question and I'll answer."
	replyQuotaExceeded   = "You've reached your daily question limit. Your quota resets at midnight UTC."
	replyStillThinking   = "That one needs a little more time. Tap the button below in a moment to get your answer."
	replyNotReady        = "Still working on it. Please try again shortly."
	replyUnavailable     = "I couldn't reach the knowledge base just now. Please try again in a moment."
)
