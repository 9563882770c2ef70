// Package shared contains common domain types, errors, and events
// that are used across all domain packages.
package shared

import (
	"strings"
)

// ActionType identifies a category of user action reported to the engagement
// core. Actions drive points, streak triggers, recovery progress, and
// achievement checks.
type ActionType string

const (
	// ActionCheckBalance - user viewed account balances.
	ActionCheckBalance ActionType = "CHECK_BALANCE"

	// ActionDailyCheckIn - user opened the app and checked in for the day.
	ActionDailyCheckIn ActionType = "DAILY_CHECK_IN"

	// ActionCategorizeTransaction - user categorized a transaction.
	ActionCategorizeTransaction ActionType = "CATEGORIZE_TRANSACTION"

	// ActionBudgetReview - user reviewed or adjusted a budget.
	ActionBudgetReview ActionType = "BUDGET_REVIEW"

	// ActionUpdateGoal - user updated a savings or spending goal.
	ActionUpdateGoal ActionType = "UPDATE_GOAL"

	// ActionSavingsContribution - user contributed to a savings goal.
	ActionSavingsContribution ActionType = "SAVINGS_CONTRIBUTION"

	// ActionLinkAccount - user linked a new financial account.
	ActionLinkAccount ActionType = "LINK_ACCOUNT"

	// ActionCompleteLesson - user completed a financial literacy lesson.
	ActionCompleteLesson ActionType = "COMPLETE_LESSON"
)

// KnownActionTypes returns every action type the core understands.
func KnownActionTypes() []ActionType {
	return []ActionType{
		ActionCheckBalance,
		ActionDailyCheckIn,
		ActionCategorizeTransaction,
		ActionBudgetReview,
		ActionUpdateGoal,
		ActionSavingsContribution,
		ActionLinkAccount,
		ActionCompleteLesson,
	}
}

// IsValid checks that the action type is one the core understands.
func (a ActionType) IsValid() bool {
	for _, known := range KnownActionTypes() {
		if a == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the action type.
func (a ActionType) String() string {
	return string(a)
}

// IsValidUserID checks that a user identifier is non-empty and contains no
// whitespace. The core treats user ids as opaque strings owned by the caller.
func IsValidUserID(id string) bool {
	return len(id) > 0 && len(id) <= 64 && !strings.ContainsAny(id, " \t\n\r")
}
