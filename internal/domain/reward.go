package domain

const (
	// RewardUnmodified is granted when the user kept the AI layout untouched.
	RewardUnmodified = 50.0

	// RewardPenaltyPerCell is applied per unit of average row + column drift.
	RewardPenaltyPerCell = -20.0
)

// RewardBranch names the rule that produced a reward.
type RewardBranch string

const (
	BranchNoSuggestion RewardBranch = "no_suggestion" // no AI layout to score against
	BranchUnmodified   RewardBranch = "unmodified"    // user layout never diverged
	BranchEdited       RewardBranch = "edited"        // distance penalty, 0 on exact match
	BranchNoOverlap    RewardBranch = "no_overlap"    // edited, but no card placed in both layouts
)

// CardDiff is the absolute drift of one card between the two layouts.
type CardDiff struct {
	CardID  string `json:"cardId"`
	RowDiff int    `json:"rowDiff"`
	ColDiff int    `json:"colDiff"`
}

// RewardResult is the reward and its breakdown.
type RewardResult struct {
	Reward        float64      `json:"layoutReward"`
	Difference    float64      `json:"layoutDifference"`
	AvgRowDiff    float64      `json:"avgRowDiff"`
	AvgColDiff    float64      `json:"avgColDiff"`
	ComparedCards int          `json:"comparedCards"`
	Branch        RewardBranch `json:"branch"`
	Cards         []CardDiff   `json:"cards,omitempty"`
}

// CalculateReward compares the AI layout with the user layout.
//
// A nil ai means no suggestion was ever made. A nil user means the user
// accepted the suggestion unmodified, which is distinct from an edited
// layout that happens to match the AI layout exactly.
func CalculateReward(ai, user Layout) RewardResult {
	if ai == nil {
		return RewardResult{Branch: BranchNoSuggestion}
	}
	if user == nil {
		return RewardResult{Reward: RewardUnmodified, Branch: BranchUnmodified}
	}

	var (
		diffs          []CardDiff
		rowSum, colSum int
	)
	for _, id := range ai.CardIDs() {
		up, ok := user[id]
		if !ok {
			continue
		}
		ap := ai[id]
		d := CardDiff{CardID: id, RowDiff: abs(ap.Row - up.Row), ColDiff: abs(ap.Col - up.Col)}
		rowSum += d.RowDiff
		colSum += d.ColDiff
		diffs = append(diffs, d)
	}

	if len(diffs) == 0 {
		return RewardResult{Branch: BranchNoOverlap}
	}

	n := float64(len(diffs))
	res := RewardResult{
		AvgRowDiff:    float64(rowSum) / n,
		AvgColDiff:    float64(colSum) / n,
		ComparedCards: len(diffs),
		Branch:        BranchEdited,
		Cards:         diffs,
	}
	res.Difference = res.AvgRowDiff + res.AvgColDiff
	if res.Difference != 0 {
		res.Reward = RewardPenaltyPerCell * res.Difference
	}
	return res
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
