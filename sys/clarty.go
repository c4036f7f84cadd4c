package sys

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// ===========================
// Clarty API Types
// ===========================

// ClartyResult represents a lookup response from the Clarty blacklist API.
// Some deployments only fill a locale-specific reason field.
type ClartyResult struct {
	Blacklisted bool   `json:"blacklisted"`
	Reason      string `json:"reason"`
	ReasonFR    string `json:"reason_fr"`
	ReasonEN    string `json:"reason_en"`
}

// BlockReason picks the first non-empty reason field, preferring the
// generic one, then French, then English.
func (r ClartyResult) BlockReason() string {
	for _, reason := range []string{r.Reason, r.ReasonFR, r.ReasonEN} {
		if reason != "" {
			return reason
		}
	}
	return ""
}

// ClartyTimeout bounds the external lookup. The gate fails open, so a slow
// Clarty must never stall a submission for long.
var ClartyTimeout = 3 * time.Second

// CheckClarty asks the Clarty API whether userID is globally blacklisted.
// Any transport error, timeout, or non-200 answer is treated as "not
// blacklisted" so an outage never blocks legitimate submitters.
func CheckClarty(ctx context.Context, userID string) (bool, string) {
	if GlobalConfig == nil || GlobalConfig.ClartyAPIURL == "" {
		return false, ""
	}

	reqCtx, cancel := context.WithTimeout(ctx, ClartyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, GlobalConfig.ClartyAPIURL+"/"+userID, nil)
	if err != nil {
		return false, ""
	}
	if GlobalConfig.ClartyAPIKey != "" {
		req.Header.Set("Authorization", GlobalConfig.ClartyAPIKey)
	}

	resp, err := HttpClient.Do(req)
	if err != nil {
		LogWarn("Clarty lookup for user %s failed, allowing submission: %v", userID, err)
		return false, ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		LogWarn("Clarty returned status %d for user %s, allowing submission", resp.StatusCode, userID)
		return false, ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return false, ""
	}

	var result ClartyResult
	if err := json.Unmarshal(body, &result); err != nil {
		return false, ""
	}

	return result.Blacklisted, result.BlockReason()
}
