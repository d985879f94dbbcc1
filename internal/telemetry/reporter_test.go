package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/dagbolade/install-integrity-sidecar/internal/audit"
	"github.com/dagbolade/install-integrity-sidecar/internal/integrity"
	"github.com/dagbolade/install-integrity-sidecar/internal/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAuditStore struct {
	entries []audit.Entry
	err     error
}

func (m *mockAuditStore) Log(ctx context.Context, entry audit.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditStore) GetAll(ctx context.Context) ([]audit.Entry, error) {
	return m.entries, nil
}

func (m *mockAuditStore) Summary(ctx context.Context) (map[integrity.Response]int, error) {
	return nil, nil
}

func (m *mockAuditStore) Close() error { return nil }

func newTestReporter(store audit.Store) *Reporter {
	r := NewReporter(store)
	r.newID = func() string { return "fixed-id" }
	return r
}

var install = Install{PackageName: "com.example.app", VersionCode: 42, InstallerName: "com.example.store"}

func TestReportAllow(t *testing.T) {
	store := &mockAuditStore{}
	reporter := newTestReporter(store)

	entry, err := reporter.Report(context.Background(), install, integrity.Allow())
	require.NoError(t, err)

	assert.Equal(t, "fixed-id", entry.ReportID)
	assert.Equal(t, integrity.ResponseAllowed, entry.Response)
	assert.Equal(t, integrity.EffectAllow, entry.Effect)
	assert.Empty(t, entry.RuleID)
	assert.Nil(t, entry.Rule)
	require.Len(t, store.entries, 1)
	assert.Equal(t, entry, store.entries[0])
}

func TestReportForceAllow(t *testing.T) {
	store := &mockAuditStore{}
	reporter := newTestReporter(store)

	r := rule.New("trusted-signer", rule.Equals(rule.KeyAppCertificate, "abcd"), rule.EffectForceAllow)
	entry, err := reporter.Report(context.Background(), install, integrity.ForceAllow(r))
	require.NoError(t, err)

	assert.Equal(t, integrity.ResponseForceAllowed, entry.Response)
	assert.Equal(t, "trusted-signer", entry.RuleID)
	assert.JSONEq(t, `{"id":"trusted-signer","effect":"force_allow","formula":{"key":"APP_CERTIFICATE","operator":"EQ","value":"abcd"}}`, string(entry.Rule))
	assert.False(t, entry.AppCertCause)
}

func TestReportDenyCauses(t *testing.T) {
	store := &mockAuditStore{}
	reporter := newTestReporter(store)

	r := rule.New("untrusted-installer", rule.Equals(rule.KeyInstallerName, "com.sideload"), rule.EffectDeny)
	entry, err := reporter.Report(context.Background(), install, integrity.Deny(r))
	require.NoError(t, err)

	assert.Equal(t, integrity.ResponseRejected, entry.Response)
	assert.Equal(t, integrity.EffectDeny, entry.Effect)
	assert.False(t, entry.AppCertCause)
	assert.True(t, entry.InstallerCause)
}

func TestReportInvalidInstall(t *testing.T) {
	store := &mockAuditStore{}
	reporter := newTestReporter(store)

	_, err := reporter.Report(context.Background(), Install{}, integrity.Allow())
	assert.ErrorIs(t, err, ErrInvalidInstall)

	_, err = reporter.Report(context.Background(), Install{PackageName: "a", VersionCode: -1}, integrity.Allow())
	assert.ErrorIs(t, err, ErrInvalidInstall)
	assert.Empty(t, store.entries)
}

func TestReportStoreError(t *testing.T) {
	storeErr := errors.New("disk full")
	reporter := newTestReporter(&mockAuditStore{err: storeErr})

	_, err := reporter.Report(context.Background(), install, integrity.Allow())
	assert.ErrorIs(t, err, storeErr)
}

func TestNewReporterGeneratesIDs(t *testing.T) {
	reporter := NewReporter(&mockAuditStore{})
	assert.NotEqual(t, reporter.newID(), reporter.newID())
}
