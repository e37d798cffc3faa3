package domain

import (
	"math"
	"math/rand"
	"testing"
)

func TestLockupDiscount_ZeroLockup(t *testing.T) {
	t.Parallel()

	for _, sigma := range []float64{0, 0.2, 1.5} {
		for _, price := range []float64{0, 50, 10000} {
			if got := LockupDiscount(sigma, 0, price, 0.03); got != 0 {
				t.Fatalf("LockupDiscount(sigma=%v, lockup=0, price=%v) = %v, want 0", sigma, price, got)
			}
		}
	}
}

func TestLockupDiscount_ZeroVolatility(t *testing.T) {
	t.Parallel()

	// σ=0 时 inner 项退化为 0，折价必须安全返回 0 而不是 NaN
	if got := LockupDiscount(0, 2, 100, 0); got != 0 {
		t.Fatalf("LockupDiscount(sigma=0) = %v, want 0", got)
	}
}

func TestLockupDiscount_Properties(t *testing.T) {
	t.Parallel()

	// 随机扫描：任意非负输入下折价非负、有限，且不超过贴现后的价格
	rng := rand.New(rand.NewSource(20240117))
	for i := 0; i < 5000; i++ {
		sigma := rng.Float64() * 2
		lockup := rng.Float64() * 10
		price := rng.Float64() * 10000
		q := rng.Float64() * 0.1

		got := LockupDiscount(sigma, lockup, price, q)
		if math.IsNaN(got) || math.IsInf(got, 0) {
			t.Fatalf("LockupDiscount(%v, %v, %v, %v) = %v, want finite", sigma, lockup, price, q, got)
		}
		if got < 0 {
			t.Fatalf("LockupDiscount(%v, %v, %v, %v) = %v, want non-negative", sigma, lockup, price, q, got)
		}
		if got > price {
			t.Fatalf("LockupDiscount(%v, %v, %v, %v) = %v exceeds price %v", sigma, lockup, price, q, got, price)
		}
	}
}

func TestLockupDiscount_IncreasesWithVolatility(t *testing.T) {
	t.Parallel()

	prev := 0.0
	for _, sigma := range []float64{0.1, 0.3, 0.6, 1.0} {
		got := LockupDiscount(sigma, 2, 100, 0)
		if got <= prev {
			t.Fatalf("LockupDiscount not increasing: sigma=%v gives %v, previous %v", sigma, got, prev)
		}
		prev = got
	}
}

func TestLockupDiscount_ScalesWithPrice(t *testing.T) {
	t.Parallel()

	d1 := LockupDiscount(0.4, 1.5, 100, 0.02)
	d2 := LockupDiscount(0.4, 1.5, 200, 0.02)
	if math.Abs(d2-2*d1) > 1e-9 {
		t.Fatalf("discount should be linear in price: d(200)=%v, 2*d(100)=%v", d2, 2*d1)
	}
}
