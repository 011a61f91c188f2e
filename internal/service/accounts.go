package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/charmbracelet/log"

	"github.com/jask/finbridge/internal/database/repository"
	"github.com/jask/finbridge/internal/target"
)

// minSuggestScore is the lowest name similarity offered as a linkage.
const minSuggestScore = 0.5

// AccountService caches accounts from both sides and pairs them.
type AccountService struct {
	Accounts   *repository.AccountRepo
	Linkages   *repository.LinkageRepo
	OpenSource SourceOpener
	OpenTarget TargetOpener
	Logger     *log.Logger
}

// DiscoverResult counts accounts cached per side.
type DiscoverResult struct {
	Source int
	Target int
}

// Discover refreshes the local account cache from the bridge and the ledger.
// Ledger accounts of unsupported classifications are ignored.
func (s *AccountService) Discover(ctx context.Context) (DiscoverResult, error) {
	var res DiscoverResult
	source, err := s.OpenSource(ctx)
	if err != nil {
		return res, fmt.Errorf("source client: %w", err)
	}
	accts, err := source.ListAccounts(ctx)
	if err != nil {
		return res, err
	}
	for _, a := range accts {
		org := a.Org.Name
		if _, err := s.Accounts.Upsert(ctx, repository.Account{
			Kind:        repository.KindSimpleFIN,
			Identifier:  a.ID,
			DisplayName: a.DisplayName(),
			Currency:    a.Currency,
			OrgName:     nonEmpty(org),
		}); err != nil {
			return res, fmt.Errorf("cache source account %s: %w", a.ID, err)
		}
		res.Source++
	}

	store, err := s.OpenTarget(ctx)
	if err != nil {
		return res, fmt.Errorf("target store: %w", err)
	}
	defer store.Close()
	ledger, err := store.ListAccounts(ctx, "")
	if err != nil {
		return res, err
	}
	for _, a := range ledger {
		if !target.Supported(a.AccountableType) {
			s.logger().Debug("skipping ledger account", "account", a.Name, "type", a.AccountableType)
			continue
		}
		accountable, family := a.AccountableType, a.FamilyID
		if _, err := s.Accounts.Upsert(ctx, repository.Account{
			Kind:            repository.KindMaybe,
			Identifier:      a.ID,
			DisplayName:     a.Name,
			Currency:        a.Currency,
			AccountableType: &accountable,
			FamilyID:        &family,
		}); err != nil {
			return res, fmt.Errorf("cache ledger account %s: %w", a.ID, err)
		}
		res.Target++
	}
	s.logger().Info("accounts discovered", "source", res.Source, "target", res.Target)
	return res, nil
}

// Suggestion proposes linking two cached accounts.
type Suggestion struct {
	Source repository.Account
	Target repository.Account
	Score  float64
}

// SuggestLinkages pairs unlinked source and target accounts by display name
// similarity, best matches first. Each account appears in at most one
// suggestion.
func (s *AccountService) SuggestLinkages(ctx context.Context) ([]Suggestion, error) {
	sources, err := s.Accounts.ListUnlinked(ctx, repository.KindSimpleFIN)
	if err != nil {
		return nil, err
	}
	targets, err := s.Accounts.ListUnlinked(ctx, repository.KindMaybe)
	if err != nil {
		return nil, err
	}
	var all []Suggestion
	for _, src := range sources {
		for _, dst := range targets {
			if score := nameSimilarity(src.DisplayName, dst.DisplayName); score >= minSuggestScore {
				all = append(all, Suggestion{Source: src, Target: dst, Score: score})
			}
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })

	usedSource := map[string]bool{}
	usedTarget := map[string]bool{}
	var out []Suggestion
	for _, sg := range all {
		if usedSource[sg.Source.ID] || usedTarget[sg.Target.ID] {
			continue
		}
		usedSource[sg.Source.ID], usedTarget[sg.Target.ID] = true, true
		out = append(out, sg)
	}
	return out, nil
}

// Link pairs two cached accounts after checking both exist on the right side.
func (s *AccountService) Link(ctx context.Context, sourceID, targetID string) (repository.Linkage, error) {
	for _, want := range []struct{ id, kind string }{{sourceID, repository.KindSimpleFIN}, {targetID, repository.KindMaybe}} {
		a, err := s.Accounts.Get(ctx, want.id)
		if err != nil {
			return repository.Linkage{}, err
		}
		if a == nil || a.Kind != want.kind {
			return repository.Linkage{}, &NotFoundError{Kind: want.kind + " account", ID: want.id}
		}
	}
	return s.Linkages.Create(ctx, sourceID, targetID)
}

// nameSimilarity scores two account names in [0, 1]. Source names carry an
// "<org> - " prefix, so the bare account name is compared too.
func nameSimilarity(source, target string) float64 {
	best := similarity(source, target)
	if _, bare, ok := strings.Cut(source, " - "); ok {
		if s := similarity(bare, target); s > best {
			best = s
		}
	}
	return best
}

func similarity(a, b string) float64 {
	a, b = strings.ToUpper(strings.TrimSpace(a)), strings.ToUpper(strings.TrimSpace(b))
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *AccountService) logger() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}
