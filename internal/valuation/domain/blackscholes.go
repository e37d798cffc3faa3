package domain

import "math"

// PriceCall 计算欧式看涨期权的 Black-Scholes-Merton 理论价格。
// 利率 r 与股息率 q 为连续复利。边界分支按顺序短路：
//  1. T ≤ ε：返回内在价值 max(S-K, 0)
//  2. σ ≤ ε：返回贴现内在价值 max(S·e^{-qT} - K·e^{-rT}, 0)
//  3. K ≤ ε：退化为远期价值 S·e^{-qT}（RSU 形态）
//  4. S ≤ ε：返回 0
//
// 公式求值若出现 NaN/Inf（极端输入下的浮点溢出），降级为内在价值。
func PriceCall(s, k, t, r, sigma, q float64) float64 {
	switch {
	case t <= epsilon:
		return math.Max(s-k, 0)
	case sigma <= epsilon:
		return math.Max(s*math.Exp(-q*t)-k*math.Exp(-r*t), 0)
	case k <= epsilon:
		return s * math.Exp(-q*t)
	case s <= epsilon:
		return 0
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r-q+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	price := s*math.Exp(-q*t)*normCdf(d1) - k*math.Exp(-r*t)*normCdf(d2)

	if math.IsNaN(price) || math.IsInf(price, 0) {
		return math.Max(s-k, 0)
	}
	return math.Max(price, 0)
}

// ContinuousRate 将有效年化利率转换为连续复利。
// 巴西 DI 等报价为有效年化，13% 水平下与连续复利差异显著，不可忽略。
func ContinuousRate(effective float64) float64 {
	return math.Log(1 + effective)
}

// normCdf 标准正态分布累积分布函数
func normCdf(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}
