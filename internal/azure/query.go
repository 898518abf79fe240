package azure

import (
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"

	"github.com/opscost/azure-cost-exporter/internal/config"
	"github.com/opscost/azure-cost-exporter/internal/exporter"
)

// BuildQuery constructs the cost query for one subscription: actual
// cost, daily granularity, a single Sum(CostUSD) aggregation and one
// grouping dimension per configured group. Group order matters: the
// value of group i lands at row offset 2+i in the response.
func BuildQuery(window exporter.Window, groupBy config.GroupByConfig) armcostmanagement.QueryDefinition {
	queryType := armcostmanagement.ExportTypeActualCost
	timeframe := armcostmanagement.TimeframeTypeCustom
	granularity := armcostmanagement.GranularityTypeDaily

	var grouping []*armcostmanagement.QueryGrouping
	if groupBy.Enabled {
		for _, g := range groupBy.Groups {
			groupType := armcostmanagement.QueryColumnType(g.Type)
			name := g.Name
			grouping = append(grouping, &armcostmanagement.QueryGrouping{
				Type: &groupType,
				Name: &name,
			})
		}
	}

	start := window.Start
	end := window.End

	return armcostmanagement.QueryDefinition{
		Type:      &queryType,
		Timeframe: &timeframe,
		TimePeriod: &armcostmanagement.QueryTimePeriod{
			From: &start,
			To:   &end,
		},
		Dataset: &armcostmanagement.QueryDataset{
			Granularity: &granularity,
			Aggregation: map[string]*armcostmanagement.QueryAggregation{
				"totalCostUSD": {
					Name:     stringPtr("CostUSD"),
					Function: functionPtr(armcostmanagement.FunctionTypeSum),
				},
			},
			Grouping: grouping,
		},
	}
}

func stringPtr(s string) *string {
	return &s
}

func functionPtr(f armcostmanagement.FunctionType) *armcostmanagement.FunctionType {
	return &f
}
