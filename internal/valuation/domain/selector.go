package domain

const (
	// 无批次数据时的加权平均 vesting 缺省值（年）
	defaultAvgVesting = 3.0
	// 存续期与平均 vesting 的差超过该阈值时，提前行权窗口足够长，
	// 美式特征显著，需要格点模型
	exerciseGapThreshold = 2.0
)

// WeightedAverageVesting 计算批次的加权平均 vesting 期限。
// 无批次时返回缺省值，权重和为零时返回 0。
func WeightedAverageVesting(tranches []Tranche) float64 {
	if len(tranches) == 0 {
		return defaultAvgVesting
	}
	var totalProp, weighted float64
	for _, t := range tranches {
		totalProp += t.Proportion
		weighted += t.VestingYears * t.Proportion
	}
	if totalProp == 0 {
		return 0
	}
	return weighted / totalProp
}

// SelectModel 根据计划特征确定定价模型，返回模型与选择依据。
// 决策优先级固定，永不出错，缺数据时落入最后的缺省分支：
//  1. 市场条件 → Monte Carlo（路径依赖，闭式解与简单格点均不适用）
//  2. 零行权价 → RSU（无期权性，价值退化为贴现即期价格）
//  3. 行权价修正 / 长行权窗口 / 锁定期 → Binomial
//  4. 其余 → Black-Scholes Graded（满足要求的最低成本模型）
func SelectModel(features PlanFeatures, tranches []Tranche) (PricingModel, string) {
	if features.HasMarketCondition {
		return PricingModelMonteCarlo,
			"market condition (TSR or price target) makes the payoff path dependent; " +
				"no closed form or plain lattice captures it, stochastic simulation is required"
	}

	if features.StrikeIsZero {
		return PricingModelRSU,
			"zero or symbolic strike removes optionality; fair value reduces to the spot " +
				"price discounted for dividends forgone during vesting, less an illiquidity " +
				"discount under lockup"
	}

	exerciseGap := features.OptionLifeYears - WeightedAverageVesting(tranches)
	if features.HasStrikeCorrection || exerciseGap > exerciseGapThreshold || features.LockupYears > 0 {
		return PricingModelBinomial,
			"american-style features (strike indexation, lockup or a long post-vesting " +
				"exercise window) require the lattice to capture exercise optimality and " +
				"per-node illiquidity adjustment"
	}

	return PricingModelBlackScholesGraded,
		"no market trigger or path-sensitive feature; each vesting tranche prices " +
			"independently as a european call"
}
