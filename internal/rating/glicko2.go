// internal/rating/glicko2.go
package rating

import (
	"math"

	"github.com/jason-s-yu/certarena/internal/models"
)

const (
	// GlickoScale is the multiplier used for converting between the 1500 scale and Glicko2's mu.
	GlickoScale = 173.7178
	// DefaultMu is the baseline rating (1500).
	DefaultMu = 1500.0
	// DefaultPhi is the baseline rating deviation (350).
	DefaultPhi = 350.0
	// Tau is the constraint on volatility changes.
	Tau = 0.5
	// Epsilon is the tolerance used in iteration stopping conditions.
	Epsilon = 0.000001
)

// Glicko2Rating holds the transformed rating (Mu), rating deviation (Phi)
// and volatility (Sigma) in Glicko2 space.
type Glicko2Rating struct {
	Mu    float64
	Phi   float64
	Sigma float64
}

// NewGlicko2Rating converts a 1500-scale rating, deviation and volatility into Glicko2 space.
func NewGlicko2Rating(rating, rd, sigma float64) Glicko2Rating {
	return Glicko2Rating{
		Mu:    (rating - DefaultMu) / GlickoScale,
		Phi:   rd / GlickoScale,
		Sigma: sigma,
	}
}

// Scaled converts Mu back to the 1500 scale.
func (r Glicko2Rating) Scaled() float64 {
	return r.Mu*GlickoScale + DefaultMu
}

// UpdateGroup applies one Glicko2 rating period to every player of a finished match. scores is
// parallel to players and holds each player's result in [0..1]. With more than two players the
// opponent is approximated as the mean rating of everyone else.
func UpdateGroup(players []models.PlayerRating, scores []float64) []models.PlayerRating {
	if len(players) != len(scores) || len(players) < 2 {
		return players
	}

	var total float64
	for _, p := range players {
		total += float64(p.Rating)
	}

	updated := make([]models.PlayerRating, len(players))
	for i, p := range players {
		r := NewGlicko2Rating(float64(p.Rating), orDefault(p.Deviation, DefaultPhi), orDefault(p.Volatility, models.DefaultVolatility))

		oppRating := (total - float64(p.Rating)) / float64(len(players)-1)
		opp := NewGlicko2Rating(oppRating, DefaultPhi, models.DefaultVolatility)

		next := updateGlicko(r, opp, scores[i])
		p.Rating = int(math.Round(next.Scaled()))
		p.Deviation = next.Phi * GlickoScale
		p.Volatility = next.Sigma
		p.Matches++
		updated[i] = p
	}
	return updated
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

// updateGlicko runs one rating period for r against a single (possibly averaged) opponent.
// score is r's result in [0..1].
func updateGlicko(r, opp Glicko2Rating, score float64) Glicko2Rating {
	impact := g(opp.Phi)
	expected := E(r.Mu, opp.Mu, opp.Phi)
	variance := 1.0 / (impact * impact * expected * (1 - expected))
	surprise := score - expected

	sigma := volatility(r, variance, variance*impact*surprise)

	pre := math.Sqrt(r.Phi*r.Phi + sigma*sigma)
	phi := 1.0 / math.Sqrt(1.0/(pre*pre)+1.0/variance)
	return Glicko2Rating{
		Mu:    r.Mu + phi*phi*impact*surprise,
		Phi:   phi,
		Sigma: sigma,
	}
}

// volatility solves for the new sigma with the Illinois variant of regula falsi, working on
// x = ln(sigma^2). delta is the estimated rating improvement for the period.
func volatility(r Glicko2Rating, variance, delta float64) float64 {
	phi2 := r.Phi * r.Phi
	lnSigma2 := math.Log(r.Sigma * r.Sigma)
	fn := func(x float64) float64 {
		ex := math.Exp(x)
		spread := phi2 + variance + ex
		return ex*(delta*delta-phi2-variance-ex)/(2*spread*spread) - (x-lnSigma2)/(Tau*Tau)
	}

	lo := lnSigma2
	var hi float64
	if delta*delta > phi2+variance {
		hi = math.Log(delta*delta - phi2 - variance)
	} else {
		k := 1.0
		for fn(lnSigma2-k*Tau) < 0 {
			k++
		}
		hi = lnSigma2 - k*Tau
	}

	fLo, fHi := fn(lo), fn(hi)
	for i := 0; i < 100 && math.Abs(hi-lo) > Epsilon; i++ {
		mid := lo + (lo-hi)*fLo/(fHi-fLo)
		fMid := fn(mid)
		if fMid*fHi <= 0 {
			lo, fLo = hi, fHi
		} else {
			fLo /= 2
		}
		hi, fHi = mid, fMid
	}
	return math.Exp(lo / 2)
}

// g dampens an opponent's weight by their deviation.
func g(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/(math.Pi*math.Pi))
}

// E is the expected score of mu against mu2.
func E(mu, mu2, phi2 float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phi2)*(mu-mu2)))
}
