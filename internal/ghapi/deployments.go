package ghapi

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/go-github/v62/github"
	"github.com/rs/zerolog/log"
	"github.com/shurcooL/graphql"
)

// graphql nodes(ids:) accepts at most this many ids per query
const maxNodeIDs = 100

// DeploymentDetail is the GraphQL view of a deployment.
type DeploymentDetail struct {
	ID             int64
	NodeID         string
	State          string
	Task           string
	CommitOID      string
	Environment    string
	LogURL         string
	EnvironmentURL string
}

// ListDeployments returns all deployments created for sha.
func (c *Client) ListDeployments(ctx context.Context, owner, repo, sha string) ([]*github.Deployment, error) {
	opts := &github.DeploymentsListOptions{
		SHA:         sha,
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var all []*github.Deployment
	for {
		deployments, resp, err := c.rest.Repositories.ListDeployments(ctx, owner, repo, opts)
		if err != nil {
			return nil, classify(err, ScopeDeployments, PermissionRead)
		}
		all = append(all, deployments...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	log.Debug().Str("sha", sha).Int("deployments", len(all)).Msg("listed deployments")
	return all, nil
}

type deploymentNode struct {
	DatabaseID        int64  `graphql:"databaseId"`
	ID                string `graphql:"id"`
	State             string `graphql:"state"`
	Task              string `graphql:"task"`
	CommitOID         string `graphql:"commitOid"`
	LatestEnvironment string `graphql:"latestEnvironment"`
	LatestStatus      *struct {
		LogURL         string `graphql:"logUrl"`
		EnvironmentURL string `graphql:"environmentUrl"`
	} `graphql:"latestStatus"`
}

// DeploymentDetails looks up the deployments identified by their GraphQL node ids.
// Ids that do not resolve to a deployment are skipped.
func (c *Client) DeploymentDetails(ctx context.Context, nodeIDs []string) ([]DeploymentDetail, error) {
	var details []DeploymentDetail
	for start := 0; start < len(nodeIDs); start += maxNodeIDs {
		end := min(start+maxNodeIDs, len(nodeIDs))

		ids := make([]graphql.ID, 0, end-start)
		for _, id := range nodeIDs[start:end] {
			ids = append(ids, graphql.ID(id))
		}

		var q struct {
			Nodes []struct {
				Deployment deploymentNode `graphql:"... on Deployment"`
			} `graphql:"nodes(ids: $ids)"`
		}
		if err := c.gql.Query(ctx, &q, map[string]interface{}{"ids": ids}); err != nil {
			return nil, errors.Wrap(err, "query deployment details")
		}

		for _, node := range q.Nodes {
			d := node.Deployment
			if d.DatabaseID == 0 {
				continue
			}
			detail := DeploymentDetail{
				ID:          d.DatabaseID,
				NodeID:      d.ID,
				State:       d.State,
				Task:        d.Task,
				CommitOID:   d.CommitOID,
				Environment: d.LatestEnvironment,
			}
			if d.LatestStatus != nil {
				detail.LogURL = d.LatestStatus.LogURL
				detail.EnvironmentURL = d.LatestStatus.EnvironmentURL
			}
			details = append(details, detail)
		}
	}
	return details, nil
}
