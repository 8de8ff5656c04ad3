// Package reqhandle implements the Request Handle Table: a dense
// table mapping a freshly minted handle to its expected response
// message type, used to validate inbound responses before dispatch.
package reqhandle

import (
	"sync"

	"github.com/systerel/s2opc-go/pkg/types"
)

// Table maps outstanding request handles to their expected response
// types. The zero value is not ready for use; call NewTable.
type Table struct {
	mu      sync.Mutex
	next    types.RequestHandle
	pending map[types.RequestHandle]types.MessageType
}

// NewTable builds an empty table. Handle allocation starts at 1;
// zero is never a valid allocated handle.
func NewTable() *Table {
	return &Table{
		next:    1,
		pending: make(map[types.RequestHandle]types.MessageType),
	}
}

// FreshRequestHandle allocates a new handle expecting respType as its
// response. Two calls never return the same handle while the previous
// allocation is still outstanding; the handle space is large enough
// that wraparound reuse risk is negligible in normal operation.
func (t *Table) FreshRequestHandle(respType types.MessageType) types.RequestHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		h := t.next
		t.next++
		if h == 0 {
			continue // skip the reserved zero value on wraparound
		}
		if _, taken := t.pending[h]; taken {
			continue
		}
		t.pending[h] = respType
		return h
	}
}

// Validate reports whether handle exists and its expected response
// type matches actualRespType.
func (t *Table) Validate(handle types.RequestHandle, actualRespType types.MessageType) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	expected, ok := t.pending[handle]
	return ok && expected == actualRespType
}

// Remove drops handle from the table unconditionally; it always
// succeeds, including on an already-absent handle.
func (t *Table) Remove(handle types.RequestHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, handle)
}

// Len reports the number of outstanding handles.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
