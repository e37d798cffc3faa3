package domain

import "math"

// 格点步数按交易日密度推导，并夹在稳定区间内：
// 下限保证收敛精度，上限保证有界的运行时间。
const (
	tradingDaysPerYear = 252
	latticeMinSteps    = 50
	latticeMaxSteps    = 2000

	// 波动率低于该值时 u-d 接近 0，风险中性概率失稳，直接走贴现内在价值
	lowVolCutoff = 1e-5
	// 存续期低于该值时退化为即期内在价值
	shortLifeCutoff = 1e-5
)

// LatticeInput CRR 二叉树引擎的输入。利率与股息率为连续复利。
type LatticeInput struct {
	Spot          float64
	Strike        float64
	RiskFreeRate  float64
	Volatility    float64
	DividendYield float64

	// vesting 之前节点只承受离职风险，不存在行权分支
	VestingYears float64
	// 年化离职率，节点保留概率为 e^{-w·dt}
	TurnoverRate float64
	// 强制行权倍数 M。M ≥ 1 且美式时，S ≥ M·K 的节点强制按内在价值行权；
	// M < 1 视为禁用，不触发非理性行权。
	EarlyExerciseMultiple float64
	// 业绩障碍价。节点股价低于该值时业绩条件未达成，仅保留持有价值。
	Hurdle float64
	// 存续期（年）
	LifeYears float64
	// 行权价年度指数化增长率，K(t) = K·(1+g)^t
	StrikeGrowthRate float64
	// 锁定期（年），大于 0 时对行权所得股价逐节点扣除 Chaffe 折价
	LockupYears float64
	Style       ExerciseStyle
}

// PriceLattice 用 Cox-Ross-Rubinstein 二叉树对员工期权做后向归纳估值。
// 覆盖提前行权、离职没收、锁定期折价、行权价指数化与业绩障碍。
func PriceLattice(in LatticeInput) float64 {
	// 波动率退化：树的上下因子塌缩，直接返回对指数化行权价的贴现内在价值
	if in.Volatility < lowVolCutoff {
		kAdj := in.Strike * math.Pow(1+in.StrikeGrowthRate, in.LifeYears)
		fwd := in.Spot*math.Exp(-in.DividendYield*in.LifeYears) - kAdj*math.Exp(-in.RiskFreeRate*in.LifeYears)
		return math.Max(fwd, 0)
	}
	if in.LifeYears <= shortLifeCutoff {
		return math.Max(in.Spot-in.Strike, 0)
	}

	steps := int(in.LifeYears * tradingDaysPerYear)
	if steps > latticeMaxSteps {
		steps = latticeMaxSteps
	}
	if steps < latticeMinSteps {
		steps = latticeMinSteps
	}

	dt := in.LifeYears / float64(steps)
	vestStep := int(math.Round(in.VestingYears / dt))
	if vestStep < 0 {
		vestStep = 0
	}
	if vestStep > steps {
		vestStep = steps
	}

	u := math.Exp(in.Volatility * math.Sqrt(dt))
	d := 1 / u

	// 风险中性概率，夹到 [0,1] 吸收波动率极低时的浮点越界
	denom := u - d
	if denom == 0 {
		denom = epsilon
	}
	p := (math.Exp((in.RiskFreeRate-in.DividendYield)*dt) - d) / denom
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	retain := math.Exp(-in.TurnoverRate * dt)
	leave := 1 - retain
	disc := math.Exp(-in.RiskFreeRate * dt)
	american := in.Style != ExerciseStyleEuropean

	// 到期层：指数化行权价，锁定期折价逐节点扣减，障碍未达成的节点清零
	kFinal := in.Strike * math.Pow(1+in.StrikeGrowthRate, in.LifeYears)
	values := make([]float64, steps+1)
	for j := 0; j <= steps; j++ {
		st := in.Spot * math.Pow(u, float64(steps-j)) * math.Pow(d, float64(j))
		adj := st
		if in.LockupYears > 0 {
			adj -= LockupDiscount(in.Volatility, in.LockupYears, adj, in.DividendYield)
		}
		payoff := math.Max(adj-kFinal, 0)
		if st < in.Hurdle {
			payoff = 0
		}
		values[j] = payoff
	}

	// 后向归纳。values 原地收缩：写入 j 前只读取 j 与 j+1 的上一层值。
	for i := steps - 1; i >= 0; i-- {
		elapsed := float64(i) * dt
		kNode := in.Strike * math.Pow(1+in.StrikeGrowthRate, elapsed)

		for j := 0; j <= i; j++ {
			hold := disc * (p*values[j] + (1-p)*values[j+1])

			// vesting 之前：不可行权，只承受离职没收风险
			if i < vestStep {
				values[j] = retain * hold
				continue
			}

			sNode := in.Spot * math.Pow(u, float64(i-j)) * math.Pow(d, float64(j))
			sExercise := sNode
			if in.LockupYears > 0 {
				sExercise -= LockupDiscount(in.Volatility, in.LockupYears, sExercise, in.DividendYield)
			}
			intrinsic := math.Max(sExercise-kNode, 0)

			// 留任者继续持有，离职者被迫按内在价值结算
			stay := leave*intrinsic + retain*hold

			var nodeValue float64
			if american {
				nodeValue = math.Max(stay, intrinsic)
				// 强制行权：股价达到 M 倍行权价时模拟流动性驱动的提前行权
				if in.EarlyExerciseMultiple >= 1 && sNode >= in.EarlyExerciseMultiple*kNode {
					nodeValue = intrinsic
				}
			} else {
				nodeValue = stay
			}

			// 业绩障碍未达成：覆盖以上全部分支，只保留持有价值
			if sNode < in.Hurdle {
				nodeValue = retain * hold
			}
			values[j] = nodeValue
		}
	}

	return values[0]
}
