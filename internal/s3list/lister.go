package s3list

import (
	"io"

	"github.com/orisano/gosax"
)

// Object is one Contents entry of a ListBucketResult document.
type Object struct {
	Key          string
	LastModified string
	Size         uint64
}

// OnObjectFunc receives each parsed object. Returning discardsRest true
// stops the parse of the current response body.
type OnObjectFunc func(obj Object) (discardsRest bool, err error)

// Lister stream-parses ListBucketResult documents, invoking a callback per
// object so large listings never materialize in memory.
type Lister struct {
	handleEvent handleEventFunc
	handleText  handleTextFunc
	onObject    OnObjectFunc

	nextContinuationToken string
	keyCount              uint64
	isTruncated           bool

	currentObject Object

	exitsLoop bool
}

func NewLister(onObject OnObjectFunc) *Lister {
	p := &Lister{}
	p.handleEvent = p.handleEventStart
	p.onObject = onObject
	return p
}

// NextContinuationToken returns the token of the most recently parsed page,
// empty on the last page.
func (h *Lister) NextContinuationToken() string {
	return h.nextContinuationToken
}

// KeyCount returns the key count of the most recently parsed page.
func (h *Lister) KeyCount() uint64 {
	return h.keyCount
}

// IsTruncated reports whether the most recently parsed page was truncated.
func (h *Lister) IsTruncated() bool {
	return h.isTruncated
}

func (h *Lister) HandleResponseBody(reader io.Reader) error {
	r := gosax.NewReader(reader)
	for {
		e, err := r.Event()
		if err != nil {
			return err
		}
		if e.Type() == gosax.EventEOF {
			break
		}
		if err := h.handleEvent(e); err != nil {
			return err
		}
		if h.exitsLoop {
			break
		}
	}
	return nil
}

func (h *Lister) handleEventStart(e gosax.Event) error {
	if e.Type() == gosax.EventStart {
		elem, err := gosax.StartElement(e.Bytes)
		if err != nil {
			return err
		}
		switch elem.Name.Local {
		case elementNameNextContinuationToken:
			if isSelfClosing(e) {
				h.nextContinuationToken = ""
			} else {
				h.handleEvent = h.buildHandleEventText(h.handleEventEnd)
				h.handleText = buildHandleTextString(&h.nextContinuationToken)
			}
		case elementNameKeyCount:
			h.handleEvent = h.buildHandleEventText(h.handleEventEnd)
			h.handleText = buildHandleTextUint64(&h.keyCount)
		case elementNameIsTruncated:
			h.handleEvent = h.buildHandleEventText(h.handleEventEnd)
			h.handleText = buildHandleTextBool(&h.isTruncated)
		case elementNameContents:
			h.handleEvent = h.handleContentsEventStartOrEnd
		}
	}
	return nil
}

func (h *Lister) buildHandleEventText(nextHandleEvent handleEventFunc) handleEventFunc {
	return func(e gosax.Event) error {
		if e.Type() == gosax.EventText {
			if h.handleText != nil {
				if err := h.handleText(e.Bytes); err != nil {
					return err
				}
				h.handleText = nil
			}
			h.handleEvent = nextHandleEvent
		}
		return nil
	}
}

func (h *Lister) handleEventEnd(e gosax.Event) error {
	if e.Type() == gosax.EventEnd {
		h.handleEvent = h.handleEventStart
	}
	return nil
}

func (h *Lister) handleContentsEventStartOrEnd(e gosax.Event) error {
	switch e.Type() {
	case gosax.EventStart:
		elem, err := gosax.StartElement(e.Bytes)
		if err != nil {
			return err
		}
		switch elem.Name.Local {
		case elementNameKey:
			h.handleEvent = h.buildHandleEventText(h.handleContentsEventStartOrEnd)
			h.handleText = buildHandleTextString(&h.currentObject.Key)
		case elementNameLastModified:
			h.handleEvent = h.buildHandleEventText(h.handleContentsEventStartOrEnd)
			h.handleText = buildHandleTextString(&h.currentObject.LastModified)
		case elementNameSize:
			h.handleEvent = h.buildHandleEventText(h.handleContentsEventStartOrEnd)
			h.handleText = buildHandleTextUint64(&h.currentObject.Size)
		}
	case gosax.EventEnd:
		elem := gosax.EndElement(e.Bytes)
		if elem.Name.Local == elementNameContents {
			discardsRest, err := h.onObject(h.currentObject)
			if err != nil {
				return err
			}
			h.exitsLoop = discardsRest
			h.handleEvent = h.handleEventStart
		}
	}
	return nil
}
