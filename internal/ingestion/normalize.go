package ingestion

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"wallet-signal-lab/internal/domain"
)

// ErrSkippedRecord is returned for upstream records that cannot become a flow.
var ErrSkippedRecord = errors.New("record skipped")

// RawFlow is an upstream flow record before normalisation.
// Nil pointers mark missing fields.
type RawFlow struct {
	Wallet    string  `json:"wallet"`
	Mint      string  `json:"mint,omitempty"`
	Timestamp *int64  `json:"timestamp"`
	Direction *string `json:"direction"`
	Amount    *int64  `json:"amount_lamports"`
	Signature string  `json:"signature"`
	Slot      int64   `json:"slot,omitempty"`
}

// NormalizeRecord converts a raw record into a flow.
// Direction aliases are folded to BUY/SELL and negative amounts are made
// absolute. Records missing wallet, time, direction or amount are skipped.
func NormalizeRecord(r RawFlow) (*domain.Flow, error) {
	wallet := strings.TrimSpace(r.Wallet)
	if wallet == "" {
		return nil, fmt.Errorf("%w: missing wallet", ErrSkippedRecord)
	}
	if r.Timestamp == nil || *r.Timestamp <= 0 {
		return nil, fmt.Errorf("%w: missing timestamp", ErrSkippedRecord)
	}
	if r.Direction == nil {
		return nil, fmt.Errorf("%w: missing direction", ErrSkippedRecord)
	}
	dir, ok := domain.ParseDirection(*r.Direction)
	if !ok {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrSkippedRecord, *r.Direction)
	}
	if r.Amount == nil {
		return nil, fmt.Errorf("%w: missing amount", ErrSkippedRecord)
	}
	amount := *r.Amount
	if amount < 0 {
		amount = -amount
	}

	return &domain.Flow{
		Wallet:    wallet,
		Mint:      r.Mint,
		Timestamp: *r.Timestamp,
		Direction: dir,
		Amount:    amount,
		Signature: r.Signature,
		Slot:      r.Slot,
	}, nil
}

// ReadResult is the outcome of reading a JSONL flow export.
type ReadResult struct {
	Flows   []*domain.Flow
	Skipped int
}

// maxLineSize bounds one JSONL record. Longer lines are skipped.
const maxLineSize = 1024 * 1024

// ReadJSONL reads one RawFlow per line. Blank lines are ignored, skipped
// records (including lines over maxLineSize) are counted, and records without
// a signature get a line-based reference so they stay distinct.
func ReadJSONL(r io.Reader) (*ReadResult, error) {
	res := &ReadResult{}
	br := bufio.NewReaderSize(r, 64*1024)

	line := 0
	for {
		data, tooLong, err := readLine(br, maxLineSize)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read jsonl line %d: %w", line+1, err)
		}
		if err == io.EOF && len(data) == 0 && !tooLong {
			break
		}
		line++
		if tooLong {
			res.Skipped++
		} else {
			res.add(data, line)
		}
		if err == io.EOF {
			break
		}
	}
	return res, nil
}

func (res *ReadResult) add(data []byte, line int) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return
	}
	var raw RawFlow
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		res.Skipped++
		return
	}
	f, err := NormalizeRecord(raw)
	if err != nil {
		res.Skipped++
		return
	}
	if f.Signature == "" {
		f.Signature = "line:" + strconv.Itoa(line)
	}
	res.Flows = append(res.Flows, f)
}

// readLine returns the next line. The line ending does not count toward max;
// a longer line is consumed and reported as tooLong with no data.
func readLine(br *bufio.Reader, max int) (data []byte, tooLong bool, err error) {
	for {
		frag, err := br.ReadSlice('\n')
		if !tooLong {
			if len(data)+len(bytes.TrimRight(frag, "\r\n")) > max {
				tooLong = true
				data = nil
			} else {
				data = append(data, frag...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return data, tooLong, err
	}
}
