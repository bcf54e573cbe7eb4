package core

import (
	"strings"
	"time"

	"github.com/stasis-project/stasis/internal/config"
)

// Block names. "default" is always populated; "ac" and "battery" exist
// only on laptop chassis and only when the configuration defines at
// least one action scoped to that power state.
const (
	BlockDefault = "default"
	BlockAC      = "ac"
	BlockBattery = "battery"
)

// ActionQueue holds the staged timeline for every power-state block and
// tracks which block and index is currently active. Construction splits
// the configured action list by prefix: an action named "ac.<name>"
// belongs only to the ac block, "battery.<name>" only to the battery
// block (both keep their full prefixed name, so they stay addressable
// from the IPC "trigger" command), and everything else belongs to the
// default block.
type ActionQueue struct {
	effective map[string][]config.Action
	current   string

	index            int
	instantsFired    map[string]bool
	resumeQueue      []config.Action
	notifiedForIndex *int
}

// buildBlock partitions actions by prefix: "default" gets every action
// with neither prefix, "ac" gets exactly the "ac."-prefixed actions,
// "battery" gets exactly the "battery."-prefixed actions. Names are
// kept as configured; there is no merging between blocks.
func buildBlock(actions []config.Action, block string) []config.Action {
	var out []config.Action
	for _, a := range actions {
		switch {
		case strings.HasPrefix(a.Name, BlockAC+"."):
			if block == BlockAC {
				out = append(out, a.Clone())
			}
		case strings.HasPrefix(a.Name, BlockBattery+"."):
			if block == BlockBattery {
				out = append(out, a.Clone())
			}
		default:
			if block == BlockDefault {
				out = append(out, a.Clone())
			}
		}
	}
	return out
}

// NewActionQueue builds the three effective blocks from cfg.Actions and
// starts positioned at the default block, index 0.
func NewActionQueue(cfg *config.Config) *ActionQueue {
	q := &ActionQueue{
		effective:     make(map[string][]config.Action, 3),
		current:       BlockDefault,
		instantsFired: make(map[string]bool, 3),
	}
	q.rebuild(cfg)
	return q
}

// UpdateFromConfig replaces the effective blocks on a config reload.
// The current block, index and resume queue are preserved; instant
// actions are allowed to fire again since the definitions may have
// changed.
func (q *ActionQueue) UpdateFromConfig(cfg *config.Config) {
	q.rebuild(cfg)
	q.instantsFired = make(map[string]bool, 3)
}

func (q *ActionQueue) rebuild(cfg *config.Config) {
	q.effective[BlockDefault] = buildBlock(cfg.Actions, BlockDefault)
	q.effective[BlockAC] = buildBlock(cfg.Actions, BlockAC)
	q.effective[BlockBattery] = buildBlock(cfg.Actions, BlockBattery)
}

// HasACBlock/HasBatteryBlock report whether the configuration defines
// any power-state-scoped override, used by DetermineBlock.
func (q *ActionQueue) HasACBlock() bool      { return len(q.effective[BlockAC]) > 0 }
func (q *ActionQueue) HasBatteryBlock() bool { return len(q.effective[BlockBattery]) > 0 }

// DetermineBlock picks the block that should be active given the
// chassis and power state. Desktops always use "default"; laptops use
// "ac"/"battery" only when the config actually overrides anything for
// that state, otherwise they also fall back to "default".
func DetermineBlock(q *ActionQueue, laptop bool, onBattery bool) string {
	if !laptop {
		return BlockDefault
	}
	if onBattery && q.HasBatteryBlock() {
		return BlockBattery
	}
	if !onBattery && q.HasACBlock() {
		return BlockAC
	}
	return BlockDefault
}

// CurrentBlock returns the name of the active block.
func (q *ActionQueue) CurrentBlock() string { return q.current }

// ActiveActions returns the timeline for the active block, in
// configured order. Callers must not retain the slice across a
// SwitchBlock/UpdateFromConfig call.
func (q *ActionQueue) ActiveActions() []config.Action {
	return q.effective[q.current]
}

// AllBlocks returns every block, used by the lock supervisor to find a
// resume_command regardless of which block is currently active.
func (q *ActionQueue) AllBlocks() map[string][]config.Action {
	return q.effective
}

// Index returns the currently staged position within the active block.
func (q *ActionQueue) Index() int { return q.index }

// SetIndex repositions the queue within the active block, clamping to
// bounds and clearing any pending notification state for the old
// position.
func (q *ActionQueue) SetIndex(i int) {
	n := len(q.ActiveActions())
	if i < 0 {
		i = 0
	}
	if i > n {
		i = n
	}
	q.index = i
	q.notifiedForIndex = nil
}

// ResetIndex returns the queue to the start of the active block.
func (q *ActionQueue) ResetIndex() { q.SetIndex(0) }

// AdvanceIndex moves to the next staged action, stopping one past the
// last one (repeated calls there leave the index unchanged), and
// clears any pending notification state.
func (q *ActionQueue) AdvanceIndex() {
	n := len(q.ActiveActions())
	if q.index < n {
		q.index++
	}
	q.notifiedForIndex = nil
}

// AtEnd reports whether every staged action in the active block has
// already fired.
func (q *ActionQueue) AtEnd() bool {
	return q.index >= len(q.ActiveActions())
}

// SwitchBlock changes the active block, resetting position and
// clearing the resume queue (a pending resume belonged to the block we
// just left). It reports whether the block actually changed. Instant
// actions in the newly entered block are allowed to fire once more.
func (q *ActionQueue) SwitchBlock(name string) bool {
	if name == q.current {
		return false
	}
	q.current = name
	q.index = 0
	q.resumeQueue = nil
	q.notifiedForIndex = nil
	q.instantsFired[name] = false
	return true
}

// InstantsPending reports whether the active block's instant actions
// (timeout_secs == 0) still need to fire for this block activation.
func (q *ActionQueue) InstantsPending() bool {
	return !q.instantsFired[q.current]
}

// MarkInstantsFired records that the active block's instant actions
// have fired and should not fire again until the block changes.
func (q *ActionQueue) MarkInstantsFired() {
	q.instantsFired[q.current] = true
}

// InstantActions returns the subset of the active block that fires
// immediately rather than participating in the staged timeline.
func (q *ActionQueue) InstantActions() []config.Action {
	var out []config.Action
	for _, a := range q.ActiveActions() {
		if a.IsInstant() {
			out = append(out, a)
		}
	}
	return out
}

// FindByName looks up an action by name within the active block only,
// the scope the IPC "trigger <name>" command searches.
func (q *ActionQueue) FindByName(name string) (int, *config.Action, bool) {
	actions := q.ActiveActions()
	for i := range actions {
		if actions[i].Name == name {
			return i, &actions[i], true
		}
	}
	return -1, nil, false
}

// MarkTriggered records that the action at idx in the active block
// fired now.
func (q *ActionQueue) MarkTriggered(idx int, now time.Time) {
	actions := q.effective[q.current]
	if idx < 0 || idx >= len(actions) {
		return
	}
	t := now
	actions[idx].LastTriggered = &t
}

// ClearTriggeredBeforeLock clears last_triggered on every staged action
// strictly before lockIdx, so that once the session unlocks and the
// queue resumes past the lock, those earlier steps don't appear to
// have just fired.
func (q *ActionQueue) ClearTriggeredBeforeLock(lockIdx int) {
	actions := q.effective[q.current]
	for i := 0; i < lockIdx && i < len(actions); i++ {
		actions[i].LastTriggered = nil
	}
}

// QueueResume appends action to the pending resume queue, whose
// resume commands run on the next activity reset (see
// Manager.ResetOnActivity).
func (q *ActionQueue) QueueResume(action config.Action) {
	q.resumeQueue = append(q.resumeQueue, action)
}

// DrainResumeQueue returns and clears the pending resume actions.
func (q *ActionQueue) DrainResumeQueue() []config.Action {
	out := q.resumeQueue
	q.resumeQueue = nil
	return out
}

// NotifiedForIndex reports whether a pre-action notification has
// already been sent for idx, so the scheduler fires it at most once.
func (q *ActionQueue) NotifiedForIndex(idx int) bool {
	return q.notifiedForIndex != nil && *q.notifiedForIndex == idx
}

// MarkNotified records that idx's pre-action notification fired.
func (q *ActionQueue) MarkNotified(idx int) {
	i := idx
	q.notifiedForIndex = &i
}

// OriginalFireTime computes the instant the action at idx's pre-fire
// notification is due (and, when no notification applies, the instant
// the action itself fires). The base time follows the staged-timeline
// rule: an action's own last_triggered anchors its own next fire;
// absent that, the previous stage's last_triggered anchors it (so a
// later stage counts its timeout from when the earlier one actually
// fired, not from the last activity); only the first stage with
// nothing fired yet falls back to max(last_activity, debounce_until).
// A false second return means there is no next action (idx is past
// the end of the block).
func (q *ActionQueue) OriginalFireTime(idx int, lastActivity, debounceUntil time.Time) (time.Time, bool) {
	actions := q.ActiveActions()
	if idx < 0 || idx >= len(actions) {
		return time.Time{}, false
	}
	a := actions[idx]

	var base time.Time
	switch {
	case a.LastTriggered != nil:
		base = *a.LastTriggered
	case idx > 0 && actions[idx-1].LastTriggered != nil:
		base = *actions[idx-1].LastTriggered
	case idx == 0:
		base = lastActivity
		if debounceUntil.After(base) {
			base = debounceUntil
		}
	default:
		base = lastActivity
	}
	return base.Add(time.Duration(a.TimeoutSecs) * time.Second), true
}

// WakeTime returns the instant the scheduler next needs to wake for
// the action at idx: original_fire_time while its pre-fire
// notification either doesn't apply or hasn't been sent yet, or
// original_fire_time + notifySecs once the notification has already
// fired and the action itself is what's pending.
func (q *ActionQueue) WakeTime(idx int, lastActivity, debounceUntil time.Time, notifyEnabled bool, notifySecs uint32) (time.Time, bool) {
	fire, ok := q.OriginalFireTime(idx, lastActivity, debounceUntil)
	if !ok {
		return time.Time{}, false
	}
	actions := q.ActiveActions()
	if notifyEnabled && idx < len(actions) && actions[idx].Notification != "" && q.NotifiedForIndex(idx) {
		return fire.Add(time.Duration(notifySecs) * time.Second), true
	}
	return fire, true
}
