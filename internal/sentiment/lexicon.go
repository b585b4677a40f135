package sentiment

// Polarity weights in [-1, 1]. General opinion words carry TextBlob-like
// strengths; the financial terms follow Loughran-McDonald and are scored
// at half strength; trading-forum slang is scored by hand.

var generalWords = map[string]float64{
	"amazing": 0.6, "awesome": 1.0, "beautiful": 0.85, "best": 1.0, "better": 0.5,
	"cheap": 0.4, "easy": 0.43, "excellent": 1.0, "fantastic": 0.4,
	"free": 0.4, "fun": 0.3, "glad": 0.5, "good": 0.7, "great": 0.8,
	"happy": 0.8, "huge": 0.4, "insane": -0.5, "love": 0.5, "lucky": 0.33,
	"nice": 0.6, "perfect": 1.0, "safe": 0.5, "smart": 0.21, "solid": 0.3,
	"strong": 0.43, "top": 0.5, "undervalued": 0.4, "win": 0.8, "wonderful": 1.0,

	"awful": -1.0, "bad": -0.7, "boring": -1.0, "broke": -0.4, "dead": -0.2,
	"dumb": -0.38, "expensive": -0.5, "hate": -0.8, "horrible": -1.0, "overvalued": -0.4,
	"sad": -0.5, "scary": -0.5, "stupid": -0.8, "terrible": -1.0, "ugly": -0.7,
	"worse": -0.4, "worst": -1.0, "wrong": -0.5,
}

var financialPositive = []string{
	"achieve", "beat", "benefit", "breakout", "competitive", "enhance",
	"exceptional", "favorable", "gain", "gains", "growth", "improve",
	"improved", "improvement", "innovation", "innovative", "leader",
	"leading", "opportunity", "optimistic", "outperform", "positive",
	"profit", "profitable", "progress", "rally", "record", "remarkable",
	"robust", "strength", "succeed", "success", "successful", "superior",
	"surge", "surpass", "tremendous", "upbeat", "upgrade", "valuable",
}

var financialNegative = []string{
	"adverse", "bankrupt", "bankruptcy", "concern", "concerns", "crisis",
	"damage", "debt", "decline", "decrease", "deficit", "deteriorate",
	"difficult", "disappoint", "disappointing", "downgrade", "downturn",
	"fail", "failure", "falling", "fear", "fraud", "headwind", "impairment",
	"lawsuit", "loss", "losses", "miss", "negative", "plunge", "poor",
	"problem", "recession", "risk", "selloff", "slowdown", "underperform",
	"unfavorable", "unprofitable", "volatile", "weak", "weakness", "worsen",
}

var slangWords = map[string]float64{
	"bullish": 0.6, "moon": 0.6, "mooning": 0.7, "rocket": 0.5, "tendies": 0.5,
	"squeeze": 0.3, "hodl": 0.3, "diamond": 0.3, "printing": 0.4, "lambo": 0.5,
	"ripping": 0.5, "calls": 0.15, "buy": 0.2, "long": 0.1,

	"bearish": -0.6, "bagholder": -0.6, "bagholding": -0.6, "rekt": -0.8,
	"dump": -0.5, "dumping": -0.6, "rug": -0.7, "rugpull": -0.8, "tank": -0.5,
	"tanking": -0.6, "drilling": -0.5, "puts": -0.15, "sell": -0.2, "short": -0.1,
	"guh": -0.7, "bleeding": -0.6, "crash": -0.6, "crashing": -0.7,
}

// intensifiers scale the next opinion word.
var intensifiers = map[string]float64{
	"very": 1.3, "really": 1.2, "extremely": 1.5, "super": 1.4, "so": 1.2,
	"absolutely": 1.5, "incredibly": 1.5, "totally": 1.3, "mega": 1.4,
	"slightly": 0.5, "somewhat": 0.7, "kinda": 0.7,
}

// negators flip an opinion word and halve it.
var negators = map[string]bool{
	"not": true, "no": true, "never": true, "dont": true, "don't": true,
	"isnt": true, "isn't": true, "wont": true, "won't": true, "cant": true,
	"can't": true, "aint": true, "ain't": true, "nothing": true, "without": true,
}

func buildLexicon() map[string]float64 {
	lex := make(map[string]float64, len(generalWords)+len(financialPositive)+len(financialNegative)+len(slangWords))
	for _, w := range financialPositive {
		lex[w] = 0.5
	}
	for _, w := range financialNegative {
		lex[w] = -0.5
	}
	for w, p := range generalWords {
		lex[w] = p
	}
	for w, p := range slangWords {
		lex[w] = p
	}
	return lex
}
