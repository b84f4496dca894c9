package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/docker/go-units"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/reconcile"
)

var (
	httpClient = &http.Client{}

	// downloadStep is the size of one ranged request.
	downloadStep uint64 = 16 * units.MiB
)

// probe returns the size of the image at url. The server must report a
// length and accept byte ranges.
func probe(ctx context.Context, url string) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fault.WrapNonRecoverable(err, "Failed to download volume.")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, fault.WrapRecoverable(err, "Failed to download volume.")
	}
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fault.WrapNonRecoverable(fmt.Errorf("%s returned %s", url, resp.Status), "Failed to download volume.")
	}
	if resp.ContentLength <= 0 || resp.Header.Get("Accept-Ranges") != "bytes" {
		return 0, fault.NonRecoverable("Failed to download volume.")
	}
	return uint64(resp.ContentLength), nil
}

// download streams the image at url into v in ranged steps.
func download(op *reconcile.Op, v hypervisor.Volume, url, format string) error {
	size, err := probe(op.Ctx, url)
	if err != nil {
		return err
	}
	op.Log.Infof("Download: %s", units.BytesSize(float64(size)))

	for start := uint64(0); start < size; {
		end := min(start+downloadStep, size) - 1
		op.Log.Infof("Range: %d..%d/%d: %d%%", start, end, size, 100*(end+1)/size)

		if err := fetchRange(op, v, url, start, end, format); err != nil {
			return err
		}
		start = end + 1
	}
	return nil
}

func fetchRange(op *reconcile.Op, v hypervisor.Volume, url string, start, end uint64, format string) error {
	req, err := http.NewRequestWithContext(op.Ctx, http.MethodGet, url, nil)
	if err != nil {
		return fault.WrapNonRecoverable(err, "Failed to download volume.")
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := httpClient.Do(req)
	if err != nil {
		return fault.WrapRecoverable(err, "Failed to download volume.")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return fault.WrapRecoverable(fmt.Errorf("range %d-%d returned %s", start, end, resp.Status), "Failed to download volume.")
	}

	length := end - start + 1
	var body io.Reader = resp.Body
	if start == 0 {
		br := bufio.NewReaderSize(resp.Body, sniffLen)
		head, _ := br.Peek(sniffLen)
		checkFormat(op, head, format)
		body = br
	}

	if err := v.Upload(op.Ctx, io.LimitReader(body, int64(length)), start, length); err != nil {
		return fault.WrapRecoverable(err, "Can not upload to volume %s", v.Name())
	}
	return nil
}

// checkFormat warns when the downloaded image does not look like the
// volume's declared format.
func checkFormat(op *reconcile.Op, head []byte, format string) {
	if format == "" {
		format = FormatQCOW2
	}
	got, ok := SniffFormat(head)
	switch {
	case !ok:
		op.Log.Debug("Image format not recognized")
	case got != format:
		op.Log.Warnf("Image looks like %s, volume format is %s", got, format)
	default:
		op.Log.Debugf("Image format: %s", got)
	}
}
