package relationship

import (
	"testing"
	"time"

	"github.com/haasonsaas/attune/pkg/models"
)

var testNow = time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

func intentWith(sentiment, intensity float64, emotion string) *models.MessageIntent {
	intent := models.NeutralIntent()
	intent.Tone = models.Tone{Sentiment: sentiment, Intensity: intensity, PrimaryEmotion: emotion}
	intent.Source = models.SourceGateway
	return intent
}

func metaFor(text string) models.MessageMetadata {
	return models.DeriveMessageMetadata(text, testNow)
}

func TestApplyNeutral(t *testing.T) {
	e := NewEngine(Tuning{})
	state := models.NewRelationshipState("u1", testNow.Add(-time.Hour))

	res := e.Apply(state, models.NeutralIntent(), metaFor("ok"))

	if got := res.State.Relationship; got != DefaultTuning().NeutralIncrement {
		t.Errorf("neutral message should add exactly the flat increment, got %f", got)
	}
	if res.State.TotalInteractions != 1 {
		t.Errorf("interactions not counted: %d", res.State.TotalInteractions)
	}
	if res.State.PositiveInteractions != 0 {
		t.Error("neutral message is not positive")
	}
	if res.Ruptured || res.Repaired || len(res.Milestones) != 0 {
		t.Errorf("neutral message produced events: %+v", res)
	}
	// Input state untouched.
	if state.TotalInteractions != 0 {
		t.Error("Apply mutated its input")
	}
}

func TestApplyAsymmetry(t *testing.T) {
	e := NewEngine(Tuning{})

	// Two insults vs two equivalent compliments: cumulative damage should
	// be roughly 2-3x the magnitude of the gain.
	insult := intentWith(-0.8, 0.9, "angry")
	insult.RelationshipSignal.IsHostile = true
	compliment := intentWith(0.8, 0.9, "affectionate")

	down := models.NewRelationshipState("u1", testNow)
	up := models.NewRelationshipState("u2", testNow)
	for i := 0; i < 2; i++ {
		down = e.Apply(down, insult, metaFor("you're stupid")).State
		up = e.Apply(up, compliment, metaFor("you're wonderful")).State
	}

	loss := -(down.Warmth + down.Trust)
	gain := up.Warmth + up.Trust
	if loss < gain*2 || loss > gain*3.5 {
		t.Errorf("expected roughly 2-3x asymmetry, loss=%f gain=%f ratio=%f", loss, gain, loss/gain)
	}

	// Bounds hold under repeated extremes.
	for i := 0; i < 100; i++ {
		down = e.Apply(down, insult, metaFor("you're stupid")).State
	}
	if down.Relationship < models.RelationshipMin || down.Trust < models.DimensionMin {
		t.Errorf("scores escaped bounds: %+v", down)
	}
}

func TestApplyCategoryLayers(t *testing.T) {
	e := NewEngine(Tuning{})
	base := models.NewRelationshipState("u1", testNow)

	t.Run("compliment boosts warmth disproportionately", func(t *testing.T) {
		res := e.Apply(base, intentWith(0.6, 0.5, "affectionate"), metaFor("you always understand me"))
		if res.State.Warmth <= res.State.Trust {
			t.Errorf("warmth should lead trust after compliment: warmth=%f trust=%f", res.State.Warmth, res.State.Trust)
		}
	})

	t.Run("apology boosts trust and stability over warmth", func(t *testing.T) {
		res := e.Apply(base, intentWith(0.1, 0.4, "apologetic"), metaFor("I'm sorry about yesterday"))
		delta := func(a, b float64) float64 { return a - b }
		trustGain := delta(res.State.Trust, base.Trust)
		stabilityGain := delta(res.State.Stability, base.Stability)
		warmthGain := delta(res.State.Warmth, base.Warmth)
		if trustGain <= warmthGain || stabilityGain <= warmthGain {
			t.Errorf("apology gains wrong: trust=%f stability=%f warmth=%f", trustGain, stabilityGain, warmthGain)
		}
	})

	t.Run("joke boosts playfulness", func(t *testing.T) {
		res := e.Apply(base, intentWith(0.4, 0.5, "amused"), metaFor("haha that reminds me of a joke"))
		if res.State.Playfulness <= base.Playfulness {
			t.Error("joke should boost playfulness")
		}
	})

	t.Run("sarcastic amusement is not a joke", func(t *testing.T) {
		intent := intentWith(0.4, 0.5, "amused")
		intent.Tone.IsSarcastic = true
		res := e.Apply(base, intent, metaFor("haha sure, hilarious"))
		if len(res.Milestones) != 0 {
			t.Error("sarcasm should not fire the joke milestone")
		}
	})

	t.Run("vulnerability boosts trust", func(t *testing.T) {
		intent := intentWith(-0.2, 0.6, "sad")
		intent.RelationshipSignal.IsVulnerable = true
		res := e.Apply(base, intent, metaFor("I've never told anyone this"))
		if res.State.Trust <= base.Trust {
			t.Error("vulnerability should boost trust despite negative tone")
		}
	})
}

func TestApplyEffort(t *testing.T) {
	e := NewEngine(Tuning{})
	base := models.NewRelationshipState("u1", testNow)

	t.Run("low effort penalized", func(t *testing.T) {
		res := e.Apply(base, intentWith(0.2, 0.1, "happy"), metaFor("nice one"))
		withBonus := e.Apply(base, intentWith(0.2, 0.1, "happy"), metaFor("that was really nice, how did your day go after that?"))
		if res.State.Relationship >= withBonus.State.Relationship {
			t.Errorf("low-effort should trail high-effort: %f vs %f", res.State.Relationship, withBonus.State.Relationship)
		}
	})

	t.Run("question counts as effort", func(t *testing.T) {
		res := e.Apply(base, intentWith(0.2, 0.1, "happy"), metaFor("how are you?"))
		flat := e.Apply(base, intentWith(0.2, 0.1, "happy"), metaFor("pretty good"))
		if res.State.Relationship <= flat.State.Relationship {
			t.Error("question should earn the effort bonus")
		}
	})
}

func TestMilestonesFireOnce(t *testing.T) {
	e := NewEngine(Tuning{})
	state := models.NewRelationshipState("u1", testNow)

	intent := intentWith(-0.1, 0.6, "sad")
	intent.RelationshipSignal.IsVulnerable = true
	intent.RelationshipSignal.MilestoneCandidate = models.MilestoneFirstVulnerability

	res := e.Apply(state, intent, metaFor("I've been struggling a lot lately"))
	if len(res.Milestones) != 1 || res.Milestones[0] != models.MilestoneFirstVulnerability {
		t.Fatalf("expected first_vulnerability to fire, got %v", res.Milestones)
	}

	// The same trigger recurring never fires again.
	for i := 0; i < 5; i++ {
		res = e.Apply(res.State, intent, metaFor("still struggling"))
		if len(res.Milestones) != 0 {
			t.Fatalf("milestone fired twice on iteration %d", i)
		}
	}
	if !res.State.HasMilestone(models.MilestoneFirstVulnerability) {
		t.Error("milestone lost from set")
	}
}

func TestRuptureAndRepair(t *testing.T) {
	e := NewEngine(Tuning{})

	t.Run("hostile message sets rupture", func(t *testing.T) {
		state := models.NewRelationshipState("u1", testNow)
		insult := intentWith(-0.8, 0.9, "angry")
		insult.RelationshipSignal.IsHostile = true

		res := e.Apply(state, insult, metaFor("you're useless"))
		if !res.Ruptured || res.Repaired {
			t.Fatalf("expected rupture only: %+v", res)
		}
		if res.State.LastRuptureAt == nil {
			t.Fatal("rupture timestamp not set")
		}
	})

	t.Run("apology after rupture repairs", func(t *testing.T) {
		// Scenario: score 40 (FRIEND), sincere apology after a hostile
		// message. Trust and stability must gain more than warmth,
		// repair is recorded, tier stays FRIEND.
		state := models.NewRelationshipState("u1", testNow)
		state.Relationship = 40
		state.Tier = models.TierFriend
		rupture := testNow.Add(-time.Hour)
		state.LastRuptureAt = &rupture

		apology := intentWith(0.2, 0.6, "apologetic")
		res := e.Apply(state, apology, metaFor("I'm really sorry about what I said yesterday"))

		if !res.Repaired || res.Ruptured {
			t.Fatalf("expected repair only: %+v", res)
		}
		if res.State.LastRepairAt == nil || !res.State.LastRepairAt.After(*res.State.LastRuptureAt) {
			t.Fatal("repair timestamp wrong")
		}
		trustGain := res.State.Trust - state.Trust
		stabilityGain := res.State.Stability - state.Stability
		warmthGain := res.State.Warmth - state.Warmth
		if trustGain <= warmthGain || stabilityGain <= warmthGain {
			t.Errorf("repair gains wrong: trust=%f stability=%f warmth=%f", trustGain, stabilityGain, warmthGain)
		}
		if res.State.Tier != models.TierFriend {
			t.Errorf("tier should remain friend, got %q", res.State.Tier)
		}
	})

	t.Run("no repair bonus without unresolved rupture", func(t *testing.T) {
		state := models.NewRelationshipState("u1", testNow)
		apology := intentWith(0.2, 0.6, "apologetic")

		res := e.Apply(state, apology, metaFor("sorry I'm late today"))
		if res.Repaired {
			t.Error("repair recorded without a rupture")
		}
		if res.State.LastRepairAt != nil {
			t.Error("repair timestamp set without a rupture")
		}
	})

	t.Run("rupture and repair are mutually exclusive", func(t *testing.T) {
		// A hostile message that also reads apologetic must not repair.
		state := models.NewRelationshipState("u1", testNow)
		rupture := testNow.Add(-time.Hour)
		state.LastRuptureAt = &rupture

		mixed := intentWith(-0.8, 0.9, "apologetic")
		mixed.RelationshipSignal.IsHostile = true
		res := e.Apply(state, mixed, metaFor("sorry but you're still an idiot"))
		if res.Repaired {
			t.Error("hostile message must not repair")
		}
		if !res.Ruptured {
			t.Error("hostile message must rupture")
		}
	})

	t.Run("repair already resolved does not repeat", func(t *testing.T) {
		state := models.NewRelationshipState("u1", testNow)
		rupture := testNow.Add(-2 * time.Hour)
		repair := testNow.Add(-time.Hour)
		state.LastRuptureAt = &rupture
		state.LastRepairAt = &repair

		apology := intentWith(0.2, 0.6, "apologetic")
		res := e.Apply(state, apology, metaFor("again, I'm sorry about that"))
		if res.Repaired {
			t.Error("resolved rupture must not repair again")
		}
	})
}

func TestApplyTotality(t *testing.T) {
	e := NewEngine(Tuning{})
	state := models.NewRelationshipState("u1", testNow)

	t.Run("nil intent degrades to neutral", func(t *testing.T) {
		res := e.Apply(state, nil, metaFor("whatever this was"))
		if res.State == nil {
			t.Fatal("nil state returned")
		}
		if res.State.TotalInteractions != 1 {
			t.Error("interaction not counted")
		}
	})

	t.Run("garbage numeric input stays bounded", func(t *testing.T) {
		intent := models.NeutralIntent()
		intent.Tone.Sentiment = -999
		intent.Tone.Intensity = 999
		res := e.Apply(state, intent, metaFor("x"))
		res.State.Clamp()
		if res.State.Relationship < models.RelationshipMin {
			t.Errorf("relationship out of bounds: %f", res.State.Relationship)
		}
	})
}

func TestTierTransitions(t *testing.T) {
	e := NewEngine(Tuning{})
	state := models.NewRelationshipState("u1", testNow)
	state.Relationship = 49.8

	compliment := intentWith(0.8, 0.8, "affectionate")
	res := e.Apply(state, compliment, metaFor("you really are the best listener I know"))
	if res.State.Tier != models.TierCloseFriend {
		t.Errorf("expected close_friend after crossing 50, got %q (score %f)", res.State.Tier, res.State.Relationship)
	}
}
