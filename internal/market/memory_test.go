package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openfarm/markets/internal/geo"
)

func seedMarket(t *testing.T, repo *InMemoryRepository, name, city, state string, point *geo.Point) *Market {
	t.Helper()
	m := &Market{
		Name:       name,
		City:       city,
		State:      state,
		PostalCode: "97201",
		Point:      point,
	}
	if err := repo.InsertMarket(context.Background(), m); err != nil {
		t.Fatalf("failed to insert market %q: %v", name, err)
	}
	return m
}

func TestInsertMarket_DuplicateNameCaseInsensitive(t *testing.T) {
	repo := NewInMemoryRepository()
	seedMarket(t, repo, "Hollywood Farmers Market", "Portland", "OR", nil)

	err := repo.InsertMarket(context.Background(), &Market{
		Name:  "HOLLYWOOD farmers market",
		City:  "Portland",
		State: "OR",
	})
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
}

func TestFindMarketByName_CaseInsensitive(t *testing.T) {
	repo := NewInMemoryRepository()
	m := seedMarket(t, repo, "Pike Place", "Seattle", "WA", nil)

	found, err := repo.FindMarketByName(context.Background(), "pike PLACE")
	if err != nil {
		t.Fatalf("FindMarketByName failed: %v", err)
	}
	if found.ID != m.ID {
		t.Errorf("found market %q, want %q", found.ID, m.ID)
	}

	if _, err := repo.FindMarketByName(context.Background(), "nope"); !errors.Is(err, ErrMarketNotFound) {
		t.Errorf("expected ErrMarketNotFound, got %v", err)
	}
}

func TestFindMarketsByField_ExactMatchOnly(t *testing.T) {
	repo := NewInMemoryRepository()
	seedMarket(t, repo, "A", "Portland", "OR", nil)
	seedMarket(t, repo, "B", "PORTLAND", "OR", nil)
	seedMarket(t, repo, "C", "Port", "OR", nil)
	seedMarket(t, repo, "D", "East Portland", "OR", nil)

	got, err := repo.FindMarketsByField(context.Background(), FieldCity, "portland")
	if err != nil {
		t.Fatalf("FindMarketsByField failed: %v", err)
	}

	// Exact equality after lowercasing, not substring or prefix.
	if len(got) != 2 {
		t.Fatalf("got %d markets, want 2", len(got))
	}
	if got[0].Name != "A" || got[1].Name != "B" {
		t.Errorf("got %q, %q; want insertion order A, B", got[0].Name, got[1].Name)
	}
}

func TestListMarkets_InsertionOrder(t *testing.T) {
	repo := NewInMemoryRepository()
	names := []string{"Zeta", "Alpha", "Mid"}
	for _, n := range names {
		seedMarket(t, repo, n, "X", "Y", nil)
	}

	got, err := repo.ListMarkets(context.Background())
	if err != nil {
		t.Fatalf("ListMarkets failed: %v", err)
	}
	for i, n := range names {
		if got[i].Name != n {
			t.Errorf("position %d: got %q, want %q", i, got[i].Name, n)
		}
	}
}

func TestAddReview_Validation(t *testing.T) {
	repo := NewInMemoryRepository()
	m := seedMarket(t, repo, "Validated", "X", "Y", nil)

	cases := []struct {
		name    string
		review  *Review
		wantErr error
	}{
		{"rating too low", &Review{MarketID: m.ID, Author: "ann", Rating: 0}, ErrRatingOutOfRange},
		{"rating too high", &Review{MarketID: m.ID, Author: "ann", Rating: 6}, ErrRatingOutOfRange},
		{"missing author", &Review{MarketID: m.ID, Rating: 3}, ErrEmptyReviewAuthor},
		{"unknown market", &Review{MarketID: "missing", Author: "ann", Rating: 3}, ErrMarketNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := repo.AddReview(context.Background(), tc.review)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}

	ok := &Review{MarketID: m.ID, Author: "ann", Rating: 5, Text: "great"}
	if err := repo.AddReview(context.Background(), ok); err != nil {
		t.Fatalf("valid review rejected: %v", err)
	}
	if ok.ID == "" {
		t.Error("review ID not generated")
	}
	if ok.CreatedAt.IsZero() {
		t.Error("review CreatedAt not set")
	}
}

func TestReviewsForMarket_NewestFirst(t *testing.T) {
	repo := NewInMemoryRepository()
	m := seedMarket(t, repo, "Ordered", "X", "Y", nil)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, rating := range []int{3, 5, 1} {
		rev := &Review{
			MarketID:  m.ID,
			Author:    "ann",
			Rating:    rating,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.AddReview(context.Background(), rev); err != nil {
			t.Fatalf("AddReview failed: %v", err)
		}
	}

	got, err := repo.ReviewsForMarket(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("ReviewsForMarket failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d reviews, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.After(got[i-1].CreatedAt) {
			t.Errorf("reviews not newest-first: %v before %v", got[i-1].CreatedAt, got[i].CreatedAt)
		}
	}
	if got[0].Rating != 1 {
		t.Errorf("newest review rating = %d, want 1", got[0].Rating)
	}
}

func TestDeleteMarket_RemovesAssociatedData(t *testing.T) {
	repo := NewInMemoryRepository()
	m := seedMarket(t, repo, "Doomed", "X", "Y", nil)
	keep := seedMarket(t, repo, "Keeper", "X", "Y", nil)

	repo.SetProducts(m.ID, []Product{{Name: "apples"}})
	if err := repo.AddReview(context.Background(), &Review{MarketID: m.ID, Author: "ann", Rating: 4}); err != nil {
		t.Fatalf("AddReview failed: %v", err)
	}
	if err := repo.AddReview(context.Background(), &Review{MarketID: keep.ID, Author: "bob", Rating: 2}); err != nil {
		t.Fatalf("AddReview failed: %v", err)
	}

	if err := repo.DeleteMarket(context.Background(), "DOOMED"); err != nil {
		t.Fatalf("DeleteMarket failed: %v", err)
	}

	if _, err := repo.FindMarketByName(context.Background(), "Doomed"); !errors.Is(err, ErrMarketNotFound) {
		t.Errorf("deleted market still found: %v", err)
	}

	reviews, err := repo.ListReviews(context.Background())
	if err != nil {
		t.Fatalf("ListReviews failed: %v", err)
	}
	if len(reviews) != 1 || reviews[0].MarketID != keep.ID {
		t.Errorf("expected only the keeper's review to survive, got %d reviews", len(reviews))
	}

	if err := repo.DeleteMarket(context.Background(), "Doomed"); !errors.Is(err, ErrMarketNotFound) {
		t.Errorf("second delete: got %v, want ErrMarketNotFound", err)
	}
}

func TestMarketDetail_Composition(t *testing.T) {
	repo := NewInMemoryRepository()
	m := seedMarket(t, repo, "Detail Market", "Portland", "OR", &geo.Point{Lat: 45.5, Lng: -122.6})

	repo.SetProducts(m.ID, []Product{{Name: "apples"}, {Name: "honey"}})
	repo.SetPaymentMethods(m.ID, []PaymentMethod{{Name: "cash"}})
	repo.SetSocialLinks(m.ID, []SocialLink{{Network: "instagram", URL: ""}})

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		rev := &Review{MarketID: m.ID, Author: "ann", Rating: 4, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.AddReview(context.Background(), rev); err != nil {
			t.Fatalf("AddReview failed: %v", err)
		}
	}

	detail, err := repo.MarketDetail(context.Background(), "detail market")
	if err != nil {
		t.Fatalf("MarketDetail failed: %v", err)
	}

	if detail.Market.ID != m.ID {
		t.Errorf("detail market ID = %q, want %q", detail.Market.ID, m.ID)
	}
	if len(detail.Products) != 2 || len(detail.PaymentMethods) != 1 || len(detail.SocialLinks) != 1 {
		t.Errorf("unexpected collections: %d products, %d payments, %d socials",
			len(detail.Products), len(detail.PaymentMethods), len(detail.SocialLinks))
	}
	if len(detail.Reviews) != 2 {
		t.Fatalf("got %d reviews, want 2", len(detail.Reviews))
	}
	if detail.Reviews[0].CreatedAt.Before(detail.Reviews[1].CreatedAt) {
		t.Error("detail reviews not newest-first")
	}
}

// TestRepositoryReturnsCopies verifies callers cannot mutate stored state
// through returned pointers.
func TestRepositoryReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	seedMarket(t, repo, "Immutable", "Portland", "OR", &geo.Point{Lat: 45.5, Lng: -122.6})

	first, err := repo.FindMarketByName(context.Background(), "Immutable")
	if err != nil {
		t.Fatalf("FindMarketByName failed: %v", err)
	}
	first.City = "Mutated"
	first.Point.Lat = 0

	second, err := repo.FindMarketByName(context.Background(), "Immutable")
	if err != nil {
		t.Fatalf("FindMarketByName failed: %v", err)
	}
	if second.City != "Portland" || second.Point.Lat != 45.5 {
		t.Errorf("stored market mutated through returned pointer: %+v", second)
	}
}
