package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/clausevault/clausevault/internal/models"
)

// searchResult wraps the clause list so the result payload is an object
// with an always-present (possibly empty) list field.
type searchResult struct {
	Results []models.ClauseResult `json:"results"`
}

// lookupResult wraps the product list the same way.
type lookupResult struct {
	Products []models.ProductInfo `json:"products"`
}

// NewMCPServer builds an MCP server exposing the four retrieval tools.
// The caller picks the transport (stdio for MCP clients) and runs it.
func NewMCPServer(svc *Service, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "clausevault",
		Title:   "Insurance policy clause retrieval",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: "search_policy_clause",
		Description: "检索保险条款原文。返回与查询最相关的条款片段，" +
			"每条结果附带产品、文档与章节来源。支持按公司、产品、文档类型、条款类别过滤。",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in models.SearchPolicyClauseInput) (*mcp.CallToolResult, searchResult, error) {
		if in.TopK == 0 {
			in.TopK = 5
		}
		if in.MinSimilarity == 0 {
			in.MinSimilarity = -1 // JSON absence means "use the default floor"
		}
		results, err := svc.SearchPolicyClause(ctx, in)
		if err != nil {
			return nil, searchResult{}, err
		}
		if results == nil {
			results = []models.ClauseResult{}
		}
		return nil, searchResult{Results: results}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name: "check_exclusion_risk",
		Description: "检查某一情形是否可能触及责任免除条款。" +
			"输入口语化情形描述（如\"酒驾出事\"），返回相关免责条款原文及风险提示。",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in models.CheckExclusionRiskInput) (*mcp.CallToolResult, models.CheckExclusionRiskResult, error) {
		result, err := svc.CheckExclusionRisk(ctx, in)
		if err != nil {
			return nil, models.CheckExclusionRiskResult{}, err
		}
		return nil, *result, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name: "calculate_surrender_value_logic",
		Description: "查询退保或减额交清的条款逻辑：定义、计算规则、条件、后果及相关费率表。" +
			"只返回条款原文，不计算具体金额。",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in models.CalculateSurrenderValueLogicInput) (*mcp.CallToolResult, models.CalculateSurrenderValueLogicResult, error) {
		result, err := svc.CalculateSurrenderValueLogic(ctx, in)
		if err != nil {
			return nil, models.CalculateSurrenderValueLogicResult{}, err
		}
		return nil, *result, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name: "lookup_product",
		Description: "按名称模糊查找保险产品，返回产品代码、公司、类别等基本信息。" +
			"不检索条款内容。",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in models.LookupProductInput) (*mcp.CallToolResult, lookupResult, error) {
		products, err := svc.LookupProduct(ctx, in)
		if err != nil {
			return nil, lookupResult{}, err
		}
		if products == nil {
			products = []models.ProductInfo{}
		}
		return nil, lookupResult{Products: products}, nil
	})

	return server
}
