package app

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

//go:embed seed/chart.yaml
var defaultChart []byte

// ChartFile is the YAML layout accepted by Seed.
type ChartFile struct {
	Narratives  []RegistryEntry `yaml:"narratives"`
	CostCenters []RegistryEntry `yaml:"cost_centers"`
	Accounts    []ChartAccount  `yaml:"accounts"`
}

// RegistryEntry is a narrative or cost center in a chart file.
type RegistryEntry struct {
	Code        string `yaml:"code"`
	Description string `yaml:"description"`
}

// ChartAccount is one node of the chart. Type is inherited from the parent
// when omitted; Postable defaults to true.
type ChartAccount struct {
	Description string         `yaml:"description"`
	Type        string         `yaml:"type"`
	Code        string         `yaml:"code"`
	Postable    *bool          `yaml:"postable"`
	Children    []ChartAccount `yaml:"children"`
}

// SeedReport counts what Seed created.
type SeedReport struct {
	Accounts        int
	Narratives      int
	CostCenters     int
	SkippedAccounts bool
}

// DefaultChart returns the embedded starter chart.
func DefaultChart() (ChartFile, error) {
	return ParseChart(bytes.NewReader(defaultChart))
}

// ParseChart decodes a chart file, rejecting unknown keys.
func ParseChart(r io.Reader) (ChartFile, error) {
	var chart ChartFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&chart); err != nil {
		return ChartFile{}, fmt.Errorf("parse chart: %w", err)
	}
	return chart, nil
}

// Seed loads registries and accounts from chart. Registry codes that already
// exist are skipped; accounts are only created into an empty catalog.
func Seed(ctx context.Context, ledger *Ledger, chart ChartFile) (SeedReport, error) {
	var report SeedReport
	var err error
	if report.Narratives, err = seedRegistry(ctx, ledger.Registry, masterdata.KindNarrative, chart.Narratives); err != nil {
		return report, err
	}
	if report.CostCenters, err = seedRegistry(ctx, ledger.Registry, masterdata.KindCostCenter, chart.CostCenters); err != nil {
		return report, err
	}

	existing, err := ledger.Service.ListAccounts(ctx, accounting.AccountFilter{IncludeInactive: true})
	if err != nil {
		return report, err
	}
	if len(existing) > 0 {
		report.SkippedAccounts = true
		return report, nil
	}
	for _, node := range chart.Accounts {
		n, err := seedAccount(ctx, ledger.Service, node, nil, "")
		report.Accounts += n
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func seedRegistry(ctx context.Context, registry *masterdata.Service, kind masterdata.Kind, entries []RegistryEntry) (int, error) {
	created := 0
	for _, e := range entries {
		_, err := registry.Create(ctx, kind, e.Code, e.Description)
		switch {
		case err == nil:
			created++
		case errors.Is(err, httpx.ErrDuplicate):
		default:
			return created, fmt.Errorf("seed %s %s: %w", kind, e.Code, err)
		}
	}
	return created, nil
}

func seedAccount(ctx context.Context, svc *accounting.Service, node ChartAccount, parentID *int64, inherited accounting.AccountType) (int, error) {
	typ := inherited
	if node.Type != "" {
		parsed, err := accounting.ParseAccountType(node.Type)
		if err != nil {
			return 0, fmt.Errorf("seed account %q: %w", node.Description, err)
		}
		typ = parsed
	}
	acc, err := svc.CreateAccount(ctx, accounting.AccountInput{
		Description:     node.Description,
		Type:            typ,
		ParentID:        parentID,
		Code:            node.Code,
		AcceptsPostings: node.Postable,
	})
	if err != nil {
		return 0, fmt.Errorf("seed account %q: %w", node.Description, err)
	}
	created := 1
	for _, child := range node.Children {
		n, err := seedAccount(ctx, svc, child, &acc.ID, acc.Type)
		created += n
		if err != nil {
			return created, err
		}
	}
	return created, nil
}
