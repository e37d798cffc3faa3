package domain

import "math"

// LockupDiscount 计算 Chaffe 模型下的流动性折价（DLOM）。
// 以锁定期内平值回望看跌期权的价值近似持有人无法卖出的成本。
// 任何退化分支均返回 0，保证结果非负且有限。
func LockupDiscount(sigma, lockupYears, price, q float64) float64 {
	if lockupYears <= epsilon {
		return 0
	}

	v := sigma * sigma * lockupYears
	inner := 2 * (math.Exp(v) - v - 1)
	if inner <= epsilon {
		return 0
	}
	logTerm := math.Exp(v) - 1
	if logTerm <= epsilon {
		return 0
	}
	b := v + math.Log(inner) - 2*math.Log(logTerm)
	if b < 0 {
		return 0
	}

	a := math.Sqrt(b)
	discount := price * math.Exp(-q*lockupYears) * (normCdf(a/2) - normCdf(-a/2))
	if math.IsNaN(discount) || discount < 0 {
		return 0
	}
	return discount
}
