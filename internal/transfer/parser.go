// Package transfer drives one bundle's HTTP transfer end to end: the
// incremental multipart/byterange parser, the decompress-verify-write
// chunk pipeline, and the connection pool that multiplexes many
// transfers over a bounded set of worker goroutines sharing one HTTP
// client.
package transfer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/kesrev/rmanfetch/internal/logging"
	"github.com/kesrev/rmanfetch/internal/planner"
	"github.com/kesrev/rmanfetch/internal/rman"
)

var parserLog = logging.For("parser")

// parserState names where the parser is within one response body.
type parserState uint8

const (
	stateRecvR0 parserState = iota
	stateRecvN0
	stateRecvR1
	stateRecvN1
	stateRecvData
	stateDone
)

// ChunkSink receives one bundle's chunks, in ascending compressed-offset
// order, as their compressed payload completes.
type ChunkSink interface {
	HandleChunk(chunk *planner.ChunkDownload, compressed []byte) error
}

// Parser is a pull-through filter over arbitrary byte slices delivered
// by an HTTP response body: it never buffers more than one chunk's
// compressed payload at a time, regardless of how the caller slices
// the network reads.
type Parser struct {
	bundle   *planner.BundleDownload
	sink     ChunkSink
	mode     rman.RangeMode
	state    parserState
	chunkIdx int
	rangePos uint64
	accum    []byte
	headers  bytes.Buffer
	failed   error
}

// NewParser builds a parser for bundle, whose HandleChunk calls on sink
// as each compressed chunk completes. The initial state depends on the
// bundle's range mode: single-range bodies (One, Full) skip straight
// to streaming data, multipart bodies start by scanning for the first
// part's header block.
func NewParser(bundle *planner.BundleDownload, sink ChunkSink) *Parser {
	return newParser(bundle, sink, bundle.RangeMode)
}

// NewFullBodyParser builds a parser that treats the response body as
// the whole archive from byte 0, regardless of bundle.RangeMode. The
// origin is allowed to answer any Range request with 200 instead of
// 206 (a full, un-ranged response); when that happens the body has
// the same shape as a RangeModeFull response even if the bundle was
// planned as One or Multi, so the caller downgrades to this
// constructor instead of NewParser.
func NewFullBodyParser(bundle *planner.BundleDownload, sink ChunkSink) *Parser {
	return newParser(bundle, sink, rman.RangeModeFull)
}

// newParser builds a parser whose state-machine shape is driven by
// mode rather than bundle.RangeMode directly, so a caller that learns
// the response's actual framing only after seeing the HTTP status
// (see NewFullBodyParser) can override what the bundle was planned
// for.
func newParser(bundle *planner.BundleDownload, sink ChunkSink, mode rman.RangeMode) *Parser {
	p := &Parser{bundle: bundle, sink: sink, mode: mode}
	if mode == rman.RangeModeMulti && len(bundle.Chunks) > 1 {
		p.state = stateRecvR0
	} else {
		p.state = stateRecvData
	}
	if mode == rman.RangeModeOne {
		p.rangePos = uint64(bundle.Chunks[0].CompressedOffset)
	}
	return p
}

// IsDone reports whether the response has been fully consumed: every
// chunk of the bundle has been delivered to the sink.
func (p *Parser) IsDone() bool {
	return p.state == stateDone && p.chunkIdx == len(p.bundle.Chunks)
}

// Feed consumes data, a slice of bytes the HTTP engine just delivered,
// advancing the parser's state machine and invoking the sink for every
// chunk completed along the way. It returns an error on any protocol
// violation it detects: a malformed multipart header line, a part
// without a Content-Range header, a part whose range start is not the
// next chunk due, or a chunk the sink rejects (e.g. a hash mismatch).
// The multipart boundary string itself is not read or checked.
func (p *Parser) Feed(data []byte) error {
	if p.failed != nil {
		return p.failed
	}
	if p.state == stateDone {
		// Trailing bytes (a multipart closing boundary, or anything
		// else the origin appends after the last needed chunk) are
		// not a protocol violation once every chunk has been
		// delivered.
		return nil
	}
	if p.mode == rman.RangeModeMulti && len(p.bundle.Chunks) > 1 {
		return p.feedMulti(data)
	}
	return p.feedSingle(data)
}

// feedSingle handles One and Full range modes: the body is raw archive
// bytes starting at rangePos, either one contiguous compressed span
// (One) or the whole archive from offset 0 (Full, including a 200
// answer to a One or Multi request). Bytes before the next needed
// chunk's CompressedOffset are skipped, which only happens for a
// whole-archive body; everything else goes straight to the chunk
// assembler.
func (p *Parser) feedSingle(data []byte) error {
	for len(data) > 0 {
		if p.state == stateDone {
			// Trailing bytes after the last chunk are ignored, as in Feed.
			return nil
		}
		chunk := &p.bundle.Chunks[p.chunkIdx]
		if uint64(chunk.CompressedOffset) > p.rangePos {
			skip := uint64(chunk.CompressedOffset) - p.rangePos
			if skip > uint64(len(data)) {
				skip = uint64(len(data))
			}
			data = data[skip:]
			p.rangePos += skip
			continue
		}
		consumed, err := p.receive(data)
		if err != nil {
			return p.fail(err)
		}
		data = data[consumed:]
		p.rangePos += uint64(consumed)
	}
	return nil
}

// feedMulti handles Multi range mode: a multipart/byteranges body
// whose part boundaries are tracked by the RecvR0/RecvN0/RecvR1/RecvN1/
// RecvData states, with header bytes buffered so the Content-Range of each part can be
// read once its header block ends.
func (p *Parser) feedMulti(data []byte) error {
	for len(data) > 0 {
		b := data[0]
		switch p.state {
		case stateDone:
			// A trailing closing boundary may still be in this same
			// read; nothing left to extract from it.
			return nil
		case stateRecvR0:
			p.headers.WriteByte(b)
			if b == '\r' {
				p.state = stateRecvN0
			}
			data = data[1:]
		case stateRecvN0:
			p.headers.WriteByte(b)
			if b != '\n' {
				return p.fail(fmt.Errorf("transfer: malformed multipart headers in bundle %s", rman.Hex(p.bundle.ID)))
			}
			p.state = stateRecvR1
			data = data[1:]
		case stateRecvR1:
			if b == '\r' {
				p.state = stateRecvN1
				data = data[1:]
				continue
			}
			p.headers.WriteByte(b)
			p.state = stateRecvR0
			data = data[1:]
		case stateRecvN1:
			if b != '\n' {
				p.state = stateRecvR1
				continue
			}
			if err := p.alignToHeaders(); err != nil {
				return p.fail(err)
			}
			p.state = stateRecvData
			data = data[1:]
		case stateRecvData:
			consumed, err := p.receive(data)
			if err != nil {
				return p.fail(err)
			}
			data = data[consumed:]
			if p.state == stateRecvData {
				// current chunk still incomplete; receive consumed
				// everything available for it.
				continue
			}
			p.headers.Reset()
		}
	}
	return nil
}

// receive feeds data into the accumulator for the chunk currently
// addressed by chunkIdx, completing and delivering it to the sink once
// its full compressed payload has arrived. It returns the number of
// bytes consumed from data. When a chunk completes, state becomes Done
// if it was the bundle's last chunk, RecvR0 in multipart mode (next
// part's headers expected), and otherwise stays RecvData.
func (p *Parser) receive(data []byte) (int, error) {
	chunk := &p.bundle.Chunks[p.chunkIdx]
	total := int(chunk.CompressedSize)
	needed := total - len(p.accum)
	take := needed
	if take > len(data) {
		take = len(data)
	}
	p.accum = append(p.accum, data[:take]...)
	if len(p.accum) < total {
		return take, nil
	}
	if err := p.sink.HandleChunk(chunk, p.accum); err != nil {
		return take, err
	}
	p.accum = p.accum[:0]
	p.chunkIdx++
	if p.chunkIdx == len(p.bundle.Chunks) {
		p.state = stateDone
	} else if p.mode == rman.RangeModeMulti && len(p.bundle.Chunks) > 1 {
		p.state = stateRecvR0
	}
	return take, nil
}

// alignToHeaders reads the just-completed part's Content-Range header
// out of the buffered header block and checks that the range's start
// is the CompressedOffset of the chunk chunkIdx addresses. A part that
// the origin reordered or skipped fails the bundle, so a bundle never
// reaches Done with a chunk left undelivered.
func (p *Parser) alignToHeaders() error {
	start, ok := parseContentRangeStart(p.headers.String())
	if !ok {
		return fmt.Errorf("transfer: bundle %s: part missing Content-Range header", rman.Hex(p.bundle.ID))
	}
	for i, c := range p.bundle.Chunks {
		if uint64(c.CompressedOffset) == start {
			if i != p.chunkIdx {
				return fmt.Errorf("transfer: bundle %s: part for offset %d arrived out of order", rman.Hex(p.bundle.ID), start)
			}
			p.accum = p.accum[:0]
			return nil
		}
	}
	return fmt.Errorf("transfer: bundle %s: Content-Range start %d matches no chunk", rman.Hex(p.bundle.ID), start)
}

// parseContentRangeStart finds a "Content-Range: bytes a-b/total" line
// within header text and returns a.
func parseContentRangeStart(headerText string) (uint64, bool) {
	for _, line := range strings.Split(headerText, "\r") {
		line = strings.TrimPrefix(line, "\n")
		colon := strings.IndexByte(line, ':')
		if colon < 0 || !strings.EqualFold(strings.TrimSpace(line[:colon]), "Content-Range") {
			continue
		}
		value := strings.TrimSpace(line[colon+1:])
		value = strings.TrimPrefix(value, "bytes ")
		dash := strings.IndexByte(value, '-')
		if dash < 0 {
			return 0, false
		}
		start, err := strconv.ParseUint(value[:dash], 10, 64)
		if err != nil {
			return 0, false
		}
		return start, true
	}
	return 0, false
}

func (p *Parser) fail(err error) error {
	parserLog.Warn().Str("bundle", rman.Hex(p.bundle.ID)).Err(err).Msg("bundle parse failed")
	p.failed = err
	p.state = stateDone
	return err
}
