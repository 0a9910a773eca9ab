package notifications

import (
	"fmt"
	"strings"

	"github.com/KathenZK/research-agent/internal/models"
)

const pending = "待分析"

var sourceEmoji = map[string]string{
	"hn":         "🔥",
	"ph":         "🚀",
	"twitter":    "𝕏",
	"36kr":       "📰",
	"huxiu":      "🐯",
	"tiehan":     "💎",
	"crunchbase": "💰",
}

func emojiFor(source string) string {
	if emoji, ok := sourceEmoji[source]; ok {
		return emoji
	}
	return "💡"
}

func orPending(s string) string {
	if strings.TrimSpace(s) == "" {
		return pending
	}
	return s
}

// FormatOpportunity renders one opportunity as a chat message. The layout
// follows the rubric the opportunity was scored with.
func FormatOpportunity(opp *models.Opportunity) string {
	var b strings.Builder

	description := opp.Description()
	if description == "" {
		description = opp.Summary
	}

	if opp.Solo != nil {
		solo := opp.Solo
		fmt.Fprintf(&b, "%s 【一人公司机会 #%s】评分：%d/100\n\n", emojiFor(opp.Source), opp.ID, opp.Score)
		fmt.Fprintf(&b, "📌 %s\n🔗 来源：%s | %s\n\n", opp.Title, strings.ToUpper(opp.Source), opp.URL)
		fmt.Fprintf(&b, "📖 项目介绍\n%s\n\n", description)
		fmt.Fprintf(&b, "👤 一人公司可行性\n%s\n\n", orPending(solo.SoloFeasibility))
		fmt.Fprintf(&b, "🤖 需要的 Agent 角色\n%s\n\n", orPending(strings.Join(solo.AgentRoles, ", ")))
		fmt.Fprintf(&b, "💰 启动成本：%s\n", orPending(solo.StartupCost))
		fmt.Fprintf(&b, "⏱️ 多久见钱：%s\n", orPending(solo.TimeToRevenue))
		fmt.Fprintf(&b, "📈 收入模式：%s\n", orPending(solo.RevenueModel))
		fmt.Fprintf(&b, "🎯 月收入潜力：%s\n", orPending(solo.MonthlyPotential))
		fmt.Fprintf(&b, "⚙️ 自动化率：%s\n", orPending(solo.AutomationRate))
		fmt.Fprintf(&b, "📢 获客渠道：%s\n\n", orPending(solo.CustomerAcquisition))
		fmt.Fprintf(&b, "⚠️ 风险\n%s\n\n", orPending(solo.Risks))
		fmt.Fprintf(&b, "🚀 第一步\n%s\n\n", orPending(solo.ActionPlan))
	} else {
		market := opp.Market
		if market == nil {
			market = &models.MarketAnalysis{}
		}
		fmt.Fprintf(&b, "%s 【产品机会 #%s】评分：%d/100\n\n", emojiFor(opp.Source), opp.ID, opp.Score)
		fmt.Fprintf(&b, "📌 %s\n🔗 来源：%s | %s\n\n", opp.Title, strings.ToUpper(opp.Source), opp.URL)
		fmt.Fprintf(&b, "📖 项目介绍\n%s\n\n", description)
		fmt.Fprintf(&b, "📊 市场规模：%s\n", orPending(market.MarketSize))
		fmt.Fprintf(&b, "💼 商业模式：%s\n", orPending(market.BusinessModel))
		fmt.Fprintf(&b, "🏁 竞争对手：%s\n", orPending(market.Competitors))
		fmt.Fprintf(&b, "🧱 进入壁垒：%s\n\n", orPending(market.Barriers))
		fmt.Fprintf(&b, "⚠️ 风险\n%s\n\n", orPending(market.Risks))
		fmt.Fprintf(&b, "🚀 建议\n%s\n\n", orPending(market.Suggestion))
	}

	if len(opp.Tags) > 0 {
		fmt.Fprintf(&b, "🏷️ 标签：%s\n", strings.Join(opp.Tags, ", "))
	}
	b.WriteString("---\n")
	fmt.Fprintf(&b, "生成时间：%s", opp.CreatedAt.Format("2006-01-02 15:04"))

	return b.String()
}

// reportHeadline summarizes a run in one line
func reportHeadline(report *models.Report) string {
	return fmt.Sprintf("发现 %d 个产品机会（共分析 %d 条，%s）",
		len(report.Opportunities), report.TotalItems, report.GeneratedAt.Format("2006-01-02 15:04"))
}
