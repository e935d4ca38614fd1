package coordinator

import (
	"context"
	"fmt"

	"github.com/wanpengxie/dictate/internal/fsm"
	"github.com/wanpengxie/dictate/internal/ipc"
)

// Handle serves one IPC command against the live Coordinator state. It never
// blocks on the event loop: events are posted and Handle returns the state
// observed at enqueue time.
func (c *Coordinator) Handle(_ context.Context, req ipc.Request) ipc.Response {
	state := c.State()

	switch req.Command {
	case "status":
		return ipc.Response{OK: true, State: string(state), Message: "status"}

	case "start":
		return c.requestStart(state)

	case "toggle":
		if state == fsm.StateIdle || state == fsm.StateError {
			return c.requestStart(state)
		}
		return c.requestStop(state)

	case "stop":
		return c.requestStop(state)

	case "cancel":
		return c.requestCancel(state)

	default:
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (c *Coordinator) requestStart(state fsm.State) ipc.Response {
	if state != fsm.StateIdle && state != fsm.StateError {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot start from state %s", state)}
	}
	c.post(fsm.Event{Kind: fsm.EventUserStart, NewToken: newSessionToken()})
	return ipc.Response{OK: true, State: string(state), Message: "start requested"}
}

func (c *Coordinator) requestStop(state fsm.State) ipc.Response {
	if state != fsm.StateRecording && state != fsm.StateArming {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot stop from state %s", state)}
	}
	c.post(fsm.Event{Kind: fsm.EventUserStop, SessionToken: c.currentSessionToken()})
	return ipc.Response{OK: true, State: string(state), Message: "stop requested"}
}

// requestCancel is implemented as a user-stop: the FSM has no separate
// cancel path out of Arming/Recording, so the Coordinator discards the
// accumulated transcript instead of committing it when CommitText runs
// against an empty segment buffer. A true mid-flight cancel clears segments
// first.
func (c *Coordinator) requestCancel(state fsm.State) ipc.Response {
	if state != fsm.StateRecording && state != fsm.StateArming {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot cancel from state %s", state)}
	}
	c.mu.Lock()
	c.segments = nil
	c.summary.Cancelled = true
	c.mu.Unlock()
	c.post(fsm.Event{Kind: fsm.EventUserStop, SessionToken: c.currentSessionToken()})
	return ipc.Response{OK: true, State: string(state), Message: "cancel requested"}
}
