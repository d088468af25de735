package classifier

// Keyword 一条匹配规则。WholeWord 为 true 时要求两侧不是字母或数字，
// 用于 "app"、"pix" 这类容易误中其他单词的短词。
type Keyword struct {
	Term      string
	WholeWord bool
	// Weight 仅移动端打分使用
	Weight int
}

// Rules 分类关键词表：类别 -> 关键词列表
type Rules struct {
	Game       []Keyword
	Fintech    []Keyword
	Fullstack  []Keyword
	StaticSite []Keyword
	SingleFile []Keyword
	Mobile     []Keyword
}

func terms(words ...string) []Keyword {
	out := make([]Keyword, 0, len(words))
	for _, w := range words {
		out = append(out, Keyword{Term: w})
	}
	return out
}

func words(ws ...string) []Keyword {
	out := make([]Keyword, 0, len(ws))
	for _, w := range ws {
		out = append(out, Keyword{Term: w, WholeWord: true})
	}
	return out
}

// DefaultRules 葡萄牙语与英语的默认关键词表，匹配前统一转小写并去除重音
func DefaultRules() Rules {
	return Rules{
		Game: append(terms(
			"jogo", "jogos", "arcade", "platformer", "multiplayer", "phaser",
			"tetris", "pong", "pac-man", "pacman", "flappy", "space invaders",
			"sprite", "game loop", "gameplay",
		), words("game", "games", "rpg", "puzzle", "snake", "quiz")...),

		Fintech: append(terms(
			"fintech", "banco digital", "digital bank", "banking", "pagamento", "payment",
			"carteira digital", "digital wallet", "cripto", "crypto", "investimento",
			"investment", "financas", "finance", "financeiro", "financial", "bolsa de valores",
			"stock market", "trading", "emprestimo", "loan", "cartao de credito", "credit card",
			"transacao", "transaction", "extrato", "orcamento", "budget",
		), words("pix", "wallet", "bank")...),

		Fullstack: append(terms(
			"fullstack", "full stack", "full-stack", "backend", "back-end", "banco de dados",
			"database", "autenticacao", "authentication", "cadastro de usuarios", "user accounts",
			"dashboard", "painel administrativo", "admin panel", "crud", "sistema de gestao",
			"management system", "saas", "marketplace", "e-commerce", "ecommerce",
		), words("api", "login", "sistema", "erp", "crm")...),

		// 静态站点覆盖规则优先于 Fullstack
		StaticSite: terms(
			"landing page", "landingpage", "site institucional", "pagina institucional",
			"institutional site", "institutional website", "portfolio simples", "simple portfolio",
			"one page", "one-page", "onepage", "site estatico", "static site", "static website",
		),

		SingleFile: terms(
			"arquivo unico", "um unico arquivo", "um so arquivo", "single file", "single-file",
			"one file", "apenas html", "only html", "html puro", "plain html", "standalone html",
			"tudo em um arquivo", "everything in one file",
		),

		Mobile: []Keyword{
			{Term: "aplicativo", Weight: 70},
			{Term: "mobile", WholeWord: true, Weight: 70},
			{Term: "android", Weight: 80},
			{Term: "ios", WholeWord: true, Weight: 80},
			{Term: "iphone", Weight: 80},
			{Term: "celular", Weight: 60},
			{Term: "smartphone", Weight: 60},
			{Term: "pwa", WholeWord: true, Weight: 70},
			{Term: "app", WholeWord: true, Weight: 40},
			{Term: "apps", WholeWord: true, Weight: 40},
			{Term: "lista", WholeWord: true, Weight: 30},
			{Term: "tarefas", WholeWord: true, Weight: 30},
			{Term: "todo", WholeWord: true, Weight: 30},
			{Term: "to-do", Weight: 30},
			{Term: "checklist", Weight: 30},
			{Term: "notificacao", Weight: 30},
			{Term: "notification", Weight: 30},
			{Term: "offline", WholeWord: true, Weight: 20},
			{Term: "touch", WholeWord: true, Weight: 20},
			{Term: "swipe", WholeWord: true, Weight: 20},
		},
	}
}
