package s3list

import (
	"io"

	"github.com/orisano/gosax"
)

// TotalSizeCalculator accumulates object count and total size across pages.
// It parses only the Size element of each Contents entry, skipping the
// string fields the Lister would allocate.
type TotalSizeCalculator struct {
	handleEvent handleEventFunc
	handleText  handleTextFunc

	nextContinuationToken string
	keyCount              uint64
	isTruncated           bool

	currentSize uint64

	objCount  uint64
	totalSize uint64
}

func NewTotalSizeCalculator() *TotalSizeCalculator {
	p := &TotalSizeCalculator{}
	p.handleEvent = p.handleEventStart
	return p
}

// NextContinuationToken returns the token of the most recently parsed page,
// empty on the last page.
func (h *TotalSizeCalculator) NextContinuationToken() string {
	return h.nextContinuationToken
}

// ObjCount returns the number of objects seen so far.
func (h *TotalSizeCalculator) ObjCount() uint64 {
	return h.objCount
}

// TotalSize returns the sum of object sizes seen so far.
func (h *TotalSizeCalculator) TotalSize() uint64 {
	return h.totalSize
}

func (h *TotalSizeCalculator) HandleResponseBody(reader io.Reader) error {
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
	}
	return nil
}

func (h *TotalSizeCalculator) handleEventStart(e gosax.Event) error {
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

func (h *TotalSizeCalculator) buildHandleEventText(nextHandleEvent handleEventFunc) handleEventFunc {
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

func (h *TotalSizeCalculator) handleEventEnd(e gosax.Event) error {
	if e.Type() == gosax.EventEnd {
		h.handleEvent = h.handleEventStart
	}
	return nil
}

func (h *TotalSizeCalculator) handleContentsEventStartOrEnd(e gosax.Event) error {
	switch e.Type() {
	case gosax.EventStart:
		elem, err := gosax.StartElement(e.Bytes)
		if err != nil {
			return err
		}
		if elem.Name.Local == elementNameSize {
			h.handleEvent = h.buildHandleEventText(h.handleContentsEventStartOrEnd)
			h.handleText = buildHandleTextUint64(&h.currentSize)
		}
	case gosax.EventEnd:
		elem := gosax.EndElement(e.Bytes)
		if elem.Name.Local == elementNameContents {
			h.objCount++
			h.totalSize += h.currentSize
			h.handleEvent = h.handleEventStart
		}
	}
	return nil
}
