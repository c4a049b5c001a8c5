package transfer

import (
	"fmt"
	"io"
	"net/http"

	"github.com/kesrev/rmanfetch/internal/logging"
	"github.com/kesrev/rmanfetch/internal/planner"
	"github.com/kesrev/rmanfetch/internal/rman"
)

var connectionLog = logging.For("connection")

// Doer is the subset of an HTTP client a connection needs; satisfied
// by *http.Client and by internal/httpclient's wrapper.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

const readBufferSize = 64 * 1024

// Job is one queued unit of work for the pool: a planned bundle
// request together with the file it belongs to.
type Job struct {
	Bundle *planner.BundleDownload
	File   *FileDownload
}

// runTransfer performs one bundle's HTTP GET against prefix, streaming
// the response body through a Parser wired to a Processor for the
// owning file, and reports whether the bundle completed cleanly.
func runTransfer(client Doer, prefix string, job Job) (good bool, err error) {
	bundle := job.Bundle

	req, err := http.NewRequest(http.MethodGet, prefix+bundle.Path, nil)
	if err != nil {
		return false, err
	}
	switch bundle.RangeMode {
	case rman.RangeModeMulti:
		req.Header.Set("Range", bundle.RangeMulti)
	case rman.RangeModeOne:
		req.Header.Set("Range", bundle.RangeOne)
	case rman.RangeModeFull:
		// no Range header: the whole archive is requested.
	}

	connectionLog.Debug().Str("bundle", rman.Hex(bundle.ID)).Str("path", bundle.Path).Msg("requesting bundle")

	resp, err := client.Do(req)
	if err != nil {
		connectionLog.Warn().Str("bundle", rman.Hex(bundle.ID)).Err(err).Msg("bundle request failed")
		return false, err
	}
	defer resp.Body.Close()

	fullBody, err := checkStatus(bundle.RangeMode, resp.StatusCode)
	if err != nil {
		connectionLog.Warn().Str("bundle", rman.Hex(bundle.ID)).Err(err).Msg("bundle request failed")
		return false, err
	}

	proc, err := NewProcessor(job.File.Writer(), job.File.Info.Params, bundle.MaxUncompressed)
	if err != nil {
		return false, err
	}
	var parser *Parser
	if fullBody {
		parser = NewFullBodyParser(bundle, proc)
	} else {
		parser = NewParser(bundle, proc)
	}

	buf := make([]byte, readBufferSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if feedErr := parser.Feed(buf[:n]); feedErr != nil {
				connectionLog.Warn().Str("bundle", rman.Hex(bundle.ID)).Err(feedErr).Msg("bundle parse failed")
				return false, feedErr
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				return false, readErr
			}
			break
		}
	}
	return parser.IsDone(), nil
}

// checkStatus validates status against the request mode and reports
// whether the body is shaped as a full, un-ranged archive (true) or as
// the range response the mode planned for (false). The origin may
// legitimately answer any range request with 200 instead of 206 (the
// whole archive, Range header ignored); that response has the same
// shape as a RangeModeFull body regardless of what mode requested, so
// the caller downgrades the parser accordingly rather than treating it
// as a transport error.
func checkStatus(mode rman.RangeMode, status int) (fullBody bool, err error) {
	switch mode {
	case rman.RangeModeFull:
		if status != http.StatusOK {
			return false, fmt.Errorf("transfer: unexpected status %d for full-archive request", status)
		}
		return true, nil
	default:
		switch status {
		case http.StatusPartialContent:
			return false, nil
		case http.StatusOK:
			return true, nil
		default:
			return false, fmt.Errorf("transfer: unexpected status %d for range request", status)
		}
	}
}
