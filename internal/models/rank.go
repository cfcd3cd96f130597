package models

// DuelRank 레이팅 구간별 칭호
type DuelRank struct {
	Low        int    `json:"-"`
	High       int    `json:"-"`
	Title      string `json:"title"`
	TitleAbbr  string `json:"titleAbbr"`
	ColorEmbed int    `json:"color"`
}

var duelRanks = []DuelRank{
	{-1 << 30, 1300, "Newbie", "N", 0x808080},
	{1300, 1400, "Pupil", "P", 0x008000},
	{1400, 1600, "Specialist", "S", 0x03a89e},
	{1600, 1900, "Expert", "E", 0x0000ff},
	{1900, 2100, "Candidate Master", "CM", 0xaa00aa},
	{2100, 2300, "Master", "M", 0xff8c00},
	{2300, 2400, "International Master", "IM", 0xf57500},
	{2400, 2600, "Grandmaster", "GM", 0xff3030},
	{2600, 3000, "International Grandmaster", "IGM", 0xff0000},
	{3000, 1 << 30, "Legendary Grandmaster", "LGM", 0xcc0000},
}

// RankForRating 레이팅에 해당하는 칭호 반환
func RankForRating(rating int) DuelRank {
	for _, rank := range duelRanks {
		if rank.Low <= rating && rating < rank.High {
			return rank
		}
	}
	return duelRanks[0]
}
