// Package alerts implements the rule evaluation engine and webhook delivery
// for plantpulse alerting. Rules are evaluated against freshly computed
// indicator rows; webhooks are delivered to Teams, Slack, or generic HTTP
// targets.
package alerts
