package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and A/B testing.
// Supports gradual rollout, user targeting, and segment-based experiments.
//
// Engagement features are tuned for motivation, not spam: anything that
// pushes at the user (reminders, celebrations) must be easy to dial down
// per-segment without a deploy.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Segment targeting (e.g., "beta", "premium")
	// Empty means all segments
	TargetSegments []string

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// A/B test variant (for experiments)
	Variants []string
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID string

	Segment  string // User segment (e.g., "beta")
	Internal bool   // Internal/staff user
}

// Predefined feature flag names.
const (
	// === Streak Features ===
	FeatureStreakTracking    = "streak.tracking"    // Record activity into streaks
	FeatureStreakRecovery    = "streak.recovery"    // Grace-window recovery for broken streaks
	FeatureStreakReminders   = "streak.reminders"   // Break-risk reminders
	FeatureStreakLeaderboard = "streak.leaderboard" // Top streaks per type

	// === Gamification Features ===
	FeatureGamificationPoints       = "gamification.points"       // Points and levels
	FeatureGamificationAchievements = "gamification.achievements" // One-time achievement unlocks
	FeatureGamificationCelebrations = "gamification.celebrations" // Milestone celebrations
	FeatureGamificationMicroWins    = "gamification.micro_wins"   // Suggested next small actions

	// === Experimental Features ===
	FeatureExperimentalRedisBus = "experimental.redis_bus" // Cross-instance event fan-out
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Streak features - core loop, enabled by default
	ff.features[FeatureStreakTracking] = &Feature{
		Name:           FeatureStreakTracking,
		Description:    "Record qualifying actions into streaks",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureStreakRecovery] = &Feature{
		Name:           FeatureStreakRecovery,
		Description:    "Grace-window recovery for broken streaks",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureStreakReminders] = &Feature{
		Name:           FeatureStreakReminders,
		Description:    "Break-risk reminders for quiet streaks",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureStreakLeaderboard] = &Feature{
		Name:           FeatureStreakLeaderboard,
		Description:    "Top current streaks per streak type",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Gamification features
	ff.features[FeatureGamificationPoints] = &Feature{
		Name:           FeatureGamificationPoints,
		Description:    "Points and level progression",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGamificationAchievements] = &Feature{
		Name:           FeatureGamificationAchievements,
		Description:    "One-time achievement unlocks",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGamificationCelebrations] = &Feature{
		Name:           FeatureGamificationCelebrations,
		Description:    "Milestone celebration payloads",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGamificationMicroWins] = &Feature{
		Name:           FeatureGamificationMicroWins,
		Description:    "Suggested next small actions",
		Enabled:        true,
		RolloutPercent: 50, // Gradual rollout
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalRedisBus] = &Feature{
		Name:           FeatureExperimentalRedisBus,
		Description:    "Cross-instance event fan-out over Redis",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_STREAK_RECOVERY=true
// Example: FEATURE_GAMIFICATION_MICRO_WINS=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "streak.recovery" -> "FEATURE_STREAK_RECOVERY"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check user overrides first
	if ctx != nil && ctx.UserID != "" {
		if userOverrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := userOverrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Internal users get all features
	if ctx != nil && ctx.Internal {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check segment targeting
	if len(feature.TargetSegments) > 0 && ctx != nil && ctx.Segment != "" {
		segmentMatch := false
		for _, s := range feature.TargetSegments {
			if s == ctx.Segment {
				segmentMatch = true
				break
			}
		}
		if !segmentMatch {
			return false
		}
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return ff.isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a user is in the rollout percentage.
// Uses consistent hashing so users stay in their bucket.
func (ff *FeatureFlags) isInRollout(userID string, featureName string, percent int) bool {
	// Create a consistent hash for this user+feature combination
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// GetVariant returns the A/B test variant for a user.
// Returns empty string if no variants defined or feature disabled.
func (ff *FeatureFlags) GetVariant(featureName string, ctx *FeatureContext) string {
	ff.mu.RLock()
	feature, ok := ff.features[featureName]
	var variants []string
	if ok {
		variants = feature.Variants
	}
	ff.mu.RUnlock()

	if !ok || len(variants) == 0 || ctx == nil || ctx.UserID == "" {
		return ""
	}
	if !ff.IsEnabled(featureName, ctx) {
		return ""
	}

	// Use consistent hashing to assign variant
	h := fnv.New32a()
	h.Write([]byte(featureName + "_variant"))
	h.Write([]byte(ctx.UserID))
	hash := h.Sum32()

	variantIndex := int(hash % uint32(len(variants)))
	return variants[variantIndex]
}

// SetUserOverride sets a feature override for a specific user.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(userID string, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
