package remind

// DefaultSynonyms returns the built-in English/Russian catalog used when the
// configuration does not provide keywords.
func DefaultSynonyms() Synonyms {
	return Synonyms{
		"in":      {"in|after", "через"},
		"minutes": {"minute|minutes|min|mins|m", "минута|минуту|минуты|минут|мин"},
		"hours":   {"hour|hours|hr|hrs|h", "час|часа|часов|ч"},
		"days":    {"day|days|d", "день|дня|дней|дн"},

		"today":          {"today", "сегодня"},
		"tomorrow":       {"tomorrow|tmrw", "завтра"},
		"after_tomorrow": {"after tomorrow|day after tomorrow", "послезавтра"},
		"monday":         {"monday|mon", "понедельник|пн"},
		"tuesday":        {"tuesday|tue", "вторник|вт"},
		"wednesday":      {"wednesday|wed", "среда|среду|ср"},
		"thursday":       {"thursday|thu", "четверг|чт"},
		"friday":         {"friday|fri", "пятница|пятницу|пт"},
		"saturday":       {"saturday|sat", "суббота|субботу|сб"},
		"sunday":         {"sunday|sun", "воскресенье|вс"},

		"morning":   {"morning", "утром|утро"},
		"lunch":     {"lunch|noon", "в обед|обед"},
		"afternoon": {"afternoon", "днём|днем"},
		"dinner":    {"dinner", "за ужином|ужин"},
		"evening":   {"evening|tonight", "вечером|вечер"},
		"night":     {"night", "ночью|ночь"},
	}
}
