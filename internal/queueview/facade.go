// Package queueview assembles read-only queue summaries for presentation.
// Assembly is best effort: individual failed reads degrade the result instead
// of failing the request.
package queueview

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// recentLimit caps how many head entries the recent list covers.
const recentLimit = 5

// Gateway is the slice of the chain gateway the facade reads through.
type Gateway interface {
	SubmissionCount(ctx context.Context) (uint64, error)
	CurrentSongURL(ctx context.Context) (string, error)
	SubmissionURL(ctx context.Context, index uint64) (string, error)
	SubmitterByIndex(ctx context.Context, index uint64) (common.Address, error)
	TimestampByIndex(ctx context.Context, index uint64) (uint64, error)
}

// Submission is one queue entry as served to clients.
type Submission struct {
	URL       string `json:"url"`
	Submitter string `json:"submitter"`
	Timestamp uint64 `json:"timestamp"`
}

// RecentSubmission is a queue entry tagged with its index.
type RecentSubmission struct {
	Index uint64 `json:"index"`
	Submission
}

// Metadata is the queue summary envelope.
type Metadata struct {
	TotalCount        uint64             `json:"total_count"`
	CurrentPlaying    *Submission        `json:"current_playing"`
	ComingUpNext      *Submission        `json:"coming_up_next"`
	RecentSubmissions []RecentSubmission `json:"recent_submissions"`
}

// Facade aggregates indexed reads into Metadata envelopes.
type Facade struct {
	gw  Gateway
	log zerolog.Logger
}

func NewFacade(gw Gateway, log zerolog.Logger) *Facade {
	return &Facade{gw: gw, log: log}
}

// CurrentURL returns the URL of the queue head.
func (f *Facade) CurrentURL(ctx context.Context) (string, error) {
	return f.gw.CurrentSongURL(ctx)
}

// Metadata reads the queue summary. Only a failed count read fails the whole
// call; everything after it degrades per-field or per-index. Current and next
// are served as long as any of their three reads succeeded; a recent entry is
// omitted unless all three of its reads succeeded.
func (f *Facade) Metadata(ctx context.Context) (*Metadata, error) {
	count, err := f.gw.SubmissionCount(ctx)
	if err != nil {
		return nil, err
	}

	md := &Metadata{
		TotalCount:        count,
		RecentSubmissions: []RecentSubmission{},
	}
	if count >= 1 {
		if sub, failures := f.readSubmission(ctx, 0); failures < 3 {
			md.CurrentPlaying = sub
		}
	}
	if count >= 2 {
		if sub, failures := f.readSubmission(ctx, 1); failures < 3 {
			md.ComingUpNext = sub
		}
	}

	recent := count
	if recent > recentLimit {
		recent = recentLimit
	}
	for i := uint64(0); i < recent; i++ {
		sub, failures := f.readSubmission(ctx, i)
		if failures > 0 {
			f.log.Warn().Uint64("index", i).Msg("omitting queue entry with failed reads")
			continue
		}
		md.RecentSubmissions = append(md.RecentSubmissions, RecentSubmission{
			Index:      i,
			Submission: *sub,
		})
	}
	return md, nil
}

// readSubmission fetches the url/submitter/timestamp triple for one index.
// The three reads are independent: a failure in one never suppresses the
// others. The failure count lets callers decide how partial is too partial.
func (f *Facade) readSubmission(ctx context.Context, index uint64) (*Submission, int) {
	sub := &Submission{}
	failures := 0

	if url, err := f.gw.SubmissionURL(ctx, index); err != nil {
		f.log.Warn().Err(err).Uint64("index", index).Msg("submission url read failed")
		failures++
	} else {
		sub.URL = url
	}
	if submitter, err := f.gw.SubmitterByIndex(ctx, index); err != nil {
		f.log.Warn().Err(err).Uint64("index", index).Msg("submitter read failed")
		failures++
	} else {
		sub.Submitter = submitter.Hex()
	}
	if ts, err := f.gw.TimestampByIndex(ctx, index); err != nil {
		f.log.Warn().Err(err).Uint64("index", index).Msg("timestamp read failed")
		failures++
	} else {
		sub.Timestamp = ts
	}
	return sub, failures
}
