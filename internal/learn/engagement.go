package learn

// recentWindow is how many recent events Stats averages over.
const recentWindow = 100

// EngagementMetrics are real-world signals gathered after a story is shown.
// Rates are expected in [0,1]; absent rates are zero.
type EngagementMetrics struct {
	CompletionRate float64 `json:"completion_rate"`
	LikeRate       float64 `json:"like_rate"`
	ShareRate      float64 `json:"share_rate"`
	ReplayRate     float64 `json:"replay_rate"`
}

// EngagementScore blends engagement metrics into one success score, capped
// at 1.0.
func EngagementScore(m EngagementMetrics) float64 {
	s := m.CompletionRate*0.4 + m.LikeRate*0.3 + m.ShareRate*0.2 + m.ReplayRate*0.1
	return min(1.0, s)
}

// OptimizeForEngagement re-reinforces every original event recorded for
// storyID, oldest first, with 0.3 of its score plus 0.7 of the engagement
// score. Replayed events are recorded but never replayed again. It returns
// the number of events replayed.
func (e *Engine) OptimizeForEngagement(storyID string, m EngagementMetrics) int {
	if storyID == "" {
		return 0
	}
	agg := EngagementScore(m)

	e.mu.Lock()
	defer e.mu.Unlock()

	var replay []Event
	for _, ev := range e.history {
		if ev.Replay || ev.Context.StoryID != storyID {
			continue
		}
		replay = append(replay, ev)
	}
	for _, ev := range replay {
		e.reinforce(ev.Context, ev.Choice, ev.Score*0.3+agg*0.7, true)
	}

	e.logger.Info("learn: engagement replay", "story_id", storyID, "score", agg, "events", len(replay))
	return len(replay)
}

// Stats holds learning statistics.
type Stats struct {
	TotalWeights         int      `json:"total_weights"`
	HistorySize          int      `json:"history_size"`
	AverageRecentSuccess float64  `json:"average_recent_success"`
	LearningRate         float64  `json:"learning_rate"`
	DecayRate            float64  `json:"decay_rate"`
	Tables               []string `json:"weight_types"`
}

// Stats returns learning statistics. AverageRecentSuccess is the mean score
// of the last 100 events held in memory, 0.0 when there are none.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Stats{
		HistorySize:  e.historyOffset + len(e.history),
		LearningRate: e.learningRate,
		DecayRate:    e.decayRate,
		Tables:       make([]string, len(Tables)),
	}
	for i, t := range Tables {
		st.Tables[i] = string(t)
		for _, row := range e.tables[t] {
			st.TotalWeights += len(row)
		}
	}

	recent := e.history
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}
	if len(recent) > 0 {
		var sum float64
		for _, ev := range recent {
			sum += ev.Score
		}
		st.AverageRecentSuccess = sum / float64(len(recent))
	}
	return st
}

// History returns a copy of the events recorded since construction or the
// last Load.
func (e *Engine) History() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.history))
	copy(out, e.history)
	return out
}
