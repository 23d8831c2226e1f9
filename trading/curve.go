package trading

import (
	"errors"
	"math/big"

	"carbonvenue/mathx"
	"carbonvenue/model"
)

// PPMResolution is the parts-per-million denominator for fee fractions.
const PPMResolution = 1_000_000

var (
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInvalidFee            = errors.New("invalid fee")
)

var two = big.NewInt(2)

// outputBySource returns the gross output and the advanced marginal rate
// for consuming source amount x against the order's curve. The marginal
// rate moves linearly toward the highest rate with the fraction of
// liquidity consumed, so the output integrates the curve: the average of
// the entry and exit rates applied to x, rounded down.
func outputBySource(order *model.Order, x *big.Int) (*big.Int, *big.Int, error) {
	if x == nil || x.Sign() <= 0 {
		return nil, nil, model.ErrInvalidAmount
	}
	if x.Cmp(order.Liquidity) > 0 {
		return nil, nil, ErrInsufficientLiquidity
	}

	span := new(big.Int).Sub(order.HighestRate, order.MarginalRate)
	deltaM, err := mathx.MulDivFloor(span, x, order.Liquidity)
	if err != nil {
		return nil, nil, err
	}
	newMarginal := new(big.Int).Add(order.MarginalRate, deltaM)

	// gross = floor(x * (2m + deltaM) / (2 * RateOne))
	avgNum := new(big.Int).Add(new(big.Int).Mul(order.MarginalRate, two), deltaM)
	gross, err := mathx.MulDivFloor(x, avgNum, new(big.Int).Mul(model.RateOne, two))
	if err != nil {
		return nil, nil, err
	}
	return gross, newMarginal, nil
}

// inputBySource is the inverse walk: the smallest source amount whose curve
// output covers gross, rounded up, plus the marginal rate after consuming
// it. Solving gross = x*m + (H-m)*x^2/(2L) for x gives
//
//	x = (sqrt((L*m)^2 + 2*(H-m)*L*One*gross) - L*m) / (H-m)
//
// with a floor square root, so the candidate is verified against the
// forward walk and nudged up until it covers the requested output.
func inputByTarget(order *model.Order, gross *big.Int) (*big.Int, *big.Int, error) {
	if gross == nil || gross.Sign() <= 0 {
		return nil, nil, model.ErrInvalidAmount
	}

	liquidity := order.Liquidity
	marginal := order.MarginalRate
	span := new(big.Int).Sub(order.HighestRate, marginal)

	var x *big.Int
	if span.Sign() == 0 {
		if marginal.Sign() == 0 {
			return nil, nil, ErrInsufficientLiquidity
		}
		candidate, err := mathx.MulDivCeil(gross, model.RateOne, marginal)
		if err != nil {
			return nil, nil, err
		}
		x = candidate
	} else {
		lm := new(big.Int).Mul(liquidity, marginal)
		discriminant := new(big.Int).Mul(lm, lm)
		quad := new(big.Int).Mul(span, liquidity)
		quad.Mul(quad, model.RateOne)
		quad.Mul(quad, gross)
		quad.Mul(quad, two)
		discriminant.Add(discriminant, quad)

		root := new(big.Int).Sqrt(discriminant)
		root.Sub(root, lm)
		if root.Sign() < 0 {
			root.SetInt64(0)
		}
		candidate, err := mathx.CeilDiv(root, span)
		if err != nil {
			return nil, nil, err
		}
		x = candidate
	}

	if x.Sign() == 0 {
		x.SetInt64(1)
	}
	for {
		if x.Cmp(liquidity) > 0 {
			return nil, nil, ErrInsufficientLiquidity
		}
		out, newMarginal, err := outputBySource(order, x)
		if err != nil {
			return nil, nil, err
		}
		if out.Cmp(gross) >= 0 {
			return x, newMarginal, nil
		}
		x.Add(x, big.NewInt(1))
	}
}

// netFromGross deducts the trading fee from a gross output, rounded so the
// taker never receives more than their share.
func netFromGross(gross *big.Int, feePPM uint32) (*big.Int, *big.Int, error) {
	if feePPM >= PPMResolution {
		return nil, nil, ErrInvalidFee
	}
	net, err := mathx.MulDivFloor(gross, big.NewInt(int64(PPMResolution-feePPM)), big.NewInt(PPMResolution))
	if err != nil {
		return nil, nil, err
	}
	return net, new(big.Int).Sub(gross, net), nil
}

// grossFromNet inflates a desired net output to the gross amount the curve
// must produce once the trading fee is carved out, rounded up.
func grossFromNet(net *big.Int, feePPM uint32) (*big.Int, error) {
	if feePPM >= PPMResolution {
		return nil, ErrInvalidFee
	}
	return mathx.MulDivCeil(net, big.NewInt(PPMResolution), big.NewInt(int64(PPMResolution-feePPM)))
}
