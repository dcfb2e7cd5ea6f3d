package touchproof

// weights holds the per-signal fusion weight for one distance regime.
type weights struct {
	prox, ang, mfc, vis float64
}

var wNear = weights{prox: 0.40, ang: 0.30, mfc: 0.25, vis: 0.05}
var wFar = weights{prox: 0.45, ang: 0.20, mfc: 0.30, vis: 0.05}

// interpolateWeights blends wNear and wFar by distance factor per spec
// §4.3's adaptive weighted fusion: near below 0.3, far from 0.7 up, linear
// between.
func interpolateWeights(df float64) weights {
	switch {
	case df < 0.3:
		return wNear
	case df >= 0.7:
		return wFar
	default:
		t := (df - 0.3) / 0.4
		return weights{
			prox: (1-t)*wNear.prox + t*wFar.prox,
			ang:  (1-t)*wNear.ang + t*wFar.ang,
			mfc:  (1-t)*wNear.mfc + t*wFar.mfc,
			vis:  (1-t)*wNear.vis + t*wFar.vis,
		}
	}
}

// fuse combines the four per-signal scores using w, redistributing the
// weight of any excluded signal proportionally across the signals still in
// use, then renormalizing so the used weights sum to 1 (spec §4.3 "Adaptive
// weighted fusion"; §8 "Weight normalization" invariant).
func fuse(w weights, prox, ang, mfc, vis float64, mfcUsed, visUsed bool) float64 {
	used := w.prox + w.ang
	if mfcUsed {
		used += w.mfc
	}
	if visUsed {
		used += w.vis
	}
	if used == 0 {
		return 0
	}

	fused := w.prox*prox + w.ang*ang
	if mfcUsed {
		fused += w.mfc * mfc
	}
	if visUsed {
		fused += w.vis * vis
	}
	return fused / used
}
