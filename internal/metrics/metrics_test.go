package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCacheLookupLabelsOutcome(t *testing.T) {
	before := testutil.ToFloat64(cacheLookups.WithLabelValues(string(CacheHit)))
	RecordCacheLookup(CacheHit)
	after := testutil.ToFloat64(cacheLookups.WithLabelValues(string(CacheHit)))
	if after != before+1 {
		t.Fatalf("cacheLookups{hit} = %v, want %v", after, before+1)
	}
}

func TestRecordDownloadTracksCountAndBytes(t *testing.T) {
	beforeCount := testutil.ToFloat64(downloadTotal.WithLabelValues(string(DownloadFetched)))
	beforeBytes := testutil.ToFloat64(downloadBytes.WithLabelValues(string(DownloadFetched)))

	RecordDownload(DownloadFetched, 1024)

	afterCount := testutil.ToFloat64(downloadTotal.WithLabelValues(string(DownloadFetched)))
	afterBytes := testutil.ToFloat64(downloadBytes.WithLabelValues(string(DownloadFetched)))
	if afterCount != beforeCount+1 {
		t.Fatalf("downloadTotal{fetched} = %v, want %v", afterCount, beforeCount+1)
	}
	if afterBytes != beforeBytes+1024 {
		t.Fatalf("downloadBytes{fetched} = %v, want %v", afterBytes, beforeBytes+1024)
	}
}

func TestRecordDownloadSkipsByteCounterWhenZero(t *testing.T) {
	before := testutil.ToFloat64(downloadBytes.WithLabelValues(string(DownloadAlreadyKnown)))
	RecordDownload(DownloadAlreadyKnown, 0)
	after := testutil.ToFloat64(downloadBytes.WithLabelValues(string(DownloadAlreadyKnown)))
	if after != before {
		t.Fatalf("downloadBytes{already_known} = %v, want unchanged %v", after, before)
	}
}

func TestObservePackageDurationLabelsFreshness(t *testing.T) {
	before := testutil.CollectAndCount(ingestDuration)
	ObservePackageDuration(0.25, true)
	ObservePackageDuration(0.1, false)
	after := testutil.CollectAndCount(ingestDuration)
	if after != before+2 {
		t.Fatalf("ingestDuration observation count = %d, want %d", after, before+2)
	}
}

func TestSetRemainingURLs(t *testing.T) {
	SetRemainingURLs(3)
	if got := testutil.ToFloat64(roundsRemaining); got != 3 {
		t.Fatalf("roundsRemaining = %v, want 3", got)
	}
	SetRemainingURLs(0)
	if got := testutil.ToFloat64(roundsRemaining); got != 0 {
		t.Fatalf("roundsRemaining = %v, want 0", got)
	}
}
