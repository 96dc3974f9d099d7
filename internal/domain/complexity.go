package domain

import "math"

// ComplexityBucket is the coarse complexity class of a query.
type ComplexityBucket string

const (
	BucketLow    ComplexityBucket = "low"
	BucketMedium ComplexityBucket = "medium"
	BucketHigh   ComplexityBucket = "high"
)

var bucketRank = map[ComplexityBucket]int{BucketLow: 1, BucketMedium: 2, BucketHigh: 3}

// Covers reports whether an answer produced for b is deep enough to serve a
// query in bucket other. Unknown buckets cover nothing.
func (b ComplexityBucket) Covers(other ComplexityBucket) bool {
	rank := bucketRank[b]
	return rank > 0 && rank >= bucketRank[other]
}

// ClassifierConfig holds the tunable weights of the complexity heuristic.
type ClassifierConfig struct {
	TopicWeight     float64 `env:"COMPLEXITY_TOPIC_WEIGHT"      envDefault:"0.4"  validate:"gte=0"`
	WindowWeight    float64 `env:"COMPLEXITY_WINDOW_WEIGHT"     envDefault:"0.25" validate:"gte=0"`
	DepthWeight     float64 `env:"COMPLEXITY_DEPTH_WEIGHT"      envDefault:"0.35" validate:"gte=0"`
	TopicSaturation int     `env:"COMPLEXITY_TOPIC_SATURATION"  envDefault:"6"    validate:"gt=0"`
	WindowDays      float64 `env:"COMPLEXITY_WINDOW_SATURATION" envDefault:"90"   validate:"gt=0"`
	LowBelow        float64 `env:"COMPLEXITY_LOW_BELOW"         envDefault:"0.35" validate:"gte=0,lte=1"`
	HighFrom        float64 `env:"COMPLEXITY_HIGH_FROM"         envDefault:"0.65" validate:"gte=0,lte=1,gtefield=LowBelow"`
}

// DefaultClassifierConfig returns the stock heuristic weights.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		TopicWeight:     0.4,
		WindowWeight:    0.25,
		DepthWeight:     0.35,
		TopicSaturation: 6,
		WindowDays:      90,
		LowBelow:        0.35,
		HighFrom:        0.65,
	}
}

// Classifier scores query complexity from topic breadth, window length and depth.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a classifier.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify returns the score in [0,1] and its bucket.
func (c *Classifier) Classify(q *Query) (float64, ComplexityBucket) {
	score := c.Score(q)
	return score, c.Bucket(score)
}

// Score returns the complexity score in [0,1].
func (c *Classifier) Score(q *Query) float64 {
	topics := float64(len(NormalizeTopics(q.Topics))) / float64(c.cfg.TopicSaturation)
	window := q.Window.Days() / c.cfg.WindowDays

	var depth float64
	switch q.Depth {
	case DepthQuick:
		depth = 0
	case DepthDeep:
		depth = 1
	default:
		depth = 0.5
	}

	total := c.cfg.TopicWeight + c.cfg.WindowWeight + c.cfg.DepthWeight
	if total == 0 {
		return 0
	}

	score := c.cfg.TopicWeight*math.Min(topics, 1) +
		c.cfg.WindowWeight*math.Min(window, 1) +
		c.cfg.DepthWeight*depth

	return score / total
}

// Bucket maps a score onto its class.
func (c *Classifier) Bucket(score float64) ComplexityBucket {
	switch {
	case score < c.cfg.LowBelow:
		return BucketLow
	case score >= c.cfg.HighFrom:
		return BucketHigh
	default:
		return BucketMedium
	}
}
