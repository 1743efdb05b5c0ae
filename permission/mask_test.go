package permission

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHasRoundTripsSingleBits(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		m := Mask(rng.Uint64())
		for bit := 0; bit < 64; bit++ {
			c := Mask(1) << bit
			if !Has(m|c, c) {
				t.Fatalf("Has(%#x|%#x) = false", m, c)
			}
			if Has(m&^c, c) {
				t.Fatalf("Has(%#x&^%#x) = true", m, c)
			}
		}
	}
}

func TestHasCompositeRequiresEveryBit(t *testing.T) {
	m := ViewProducts | CreateProducts
	if Has(m, ProductManager) {
		t.Fatal("partial mask must not satisfy aggregate")
	}
	if !Has(Administrator, UserManager) {
		t.Fatal("administrator must cover user manager")
	}
	if Has(Administrator, ProductBulkOperations) {
		t.Fatal("administrator must not include bulk product operations")
	}
	if !Has(None, None) {
		t.Fatal("empty capability must always hold")
	}
}

func TestHasAllHasAny(t *testing.T) {
	m := BasicUser | ViewReports
	if !HasAll(m, ViewProducts, ViewReports) {
		t.Fatal("expected HasAll true")
	}
	if HasAll(m, ViewProducts, GenerateReports) {
		t.Fatal("expected HasAll false")
	}
	if !HasAll(m) {
		t.Fatal("HasAll with no capabilities must be true")
	}
	if !HasAny(m, DeleteUsers, ViewReports) {
		t.Fatal("expected HasAny true")
	}
	if HasAny(m, DeleteUsers, ManageSystem) {
		t.Fatal("expected HasAny false")
	}
	if HasAny(m) {
		t.Fatal("HasAny with no capabilities must be false")
	}
}

func TestNamesOfOrderedPrimitivesOnly(t *testing.T) {
	got := NamesOf(ViewAnalytics | ViewUsers | BasicUser | Mask(1)<<40)
	want := []string{"ViewUsers", "ViewProducts", "ViewProductDetails", "ViewAnalytics"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("NamesOf mismatch (-want +got):\n%s", diff)
	}

	if n := NamesOf(None); len(n) != 0 {
		t.Fatalf("expected no names, got %v", n)
	}
	if n := len(NamesOf(All)); n != primitiveCount {
		t.Fatalf("expected %d names, got %d", primitiveCount, n)
	}
}

func TestParseResolvesPrimitivesAndAggregates(t *testing.T) {
	if m, ok := Parse("manageSystem"); !ok || m != ManageSystem {
		t.Fatalf("Parse primitive = %#x, %v", m, ok)
	}
	if m, ok := Parse("ProductManager"); !ok || m != ProductManager {
		t.Fatalf("Parse aggregate = %#x, %v", m, ok)
	}
	if _, ok := Parse("Superuser"); ok {
		t.Fatal("expected unknown name")
	}

	m, err := ParseList([]string{"BasicUser", " ViewReports "})
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	if m != BasicUser|ViewReports {
		t.Fatalf("ParseList = %#x", m)
	}
	if _, err := ParseList([]string{"ViewUsers", "nope"}); !errors.Is(err, ErrUnknownName) {
		t.Fatalf("expected ErrUnknownName, got %v", err)
	}
}

func TestRegistryFreezeAndDuplicates(t *testing.T) {
	r := NewRegistry()
	if bit, err := r.Register("Read"); err != nil || bit != 0 {
		t.Fatalf("Register = %d, %v", bit, err)
	}
	if _, err := r.Register("read"); err == nil {
		t.Fatal("expected case-insensitive duplicate error")
	}
	r.Freeze()
	if _, err := r.Register("Write"); !errors.Is(err, ErrRegistryFrozen) {
		t.Fatalf("expected ErrRegistryFrozen, got %v", err)
	}
	if name, ok := r.Name(0); !ok || name != "Read" {
		t.Fatalf("Name(0) = %q, %v", name, ok)
	}
}

func TestAggregatesRejectShadowingAndUnknown(t *testing.T) {
	agg := NewAggregates(DefaultRegistry())
	if err := agg.Register("Auditor", []string{"ViewSystemLogs", "ViewReports"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if m, _ := agg.Mask("auditor"); m != ViewSystemLogs|ViewReports {
		t.Fatalf("Mask = %#x", m)
	}
	if err := agg.Register("Broken", []string{"Missing"}); !errors.Is(err, ErrUnknownName) {
		t.Fatalf("expected ErrUnknownName, got %v", err)
	}
	if err := agg.RegisterMask("ViewUsers", ViewUsers); err == nil {
		t.Fatal("expected shadowing error")
	}
	if diff := cmp.Diff([]string{"Administrator", "BasicUser", "ProductManager", "SystemAdmin", "UserManager"}, DefaultAggregates().Names()); diff != "" {
		t.Fatalf("default aggregates (-want +got):\n%s", diff)
	}
}

func FuzzNamesOfParseList(f *testing.F) {
	f.Add(uint64(0))
	f.Add(uint64(BasicUser))
	f.Add(uint64(Administrator))
	f.Add(^uint64(0))
	f.Fuzz(func(t *testing.T, raw uint64) {
		m := Mask(raw)
		back, err := ParseList(NamesOf(m))
		if err != nil {
			t.Fatalf("ParseList(NamesOf) failed: %v", err)
		}
		if back != m&All {
			t.Fatalf("round trip %#x -> %#x", m&All, back)
		}
	})
}
