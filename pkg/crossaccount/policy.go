package crossaccount

import (
	"encoding/json"
	"fmt"
	"slices"
)

// PolicyVersion is the policy language version stamped on every document.
const PolicyVersion = "2012-10-17"

// PolicyDocument is an IAM policy document. The first statement of a
// role's permission policy carries the AssumeRole resource list that the
// reconcilers edit with set semantics.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is a single policy statement.
type Statement struct {
	Effect    string     `json:"Effect"`
	Principal *Principal `json:"Principal,omitempty"`
	Action    StringList `json:"Action"`
	Resource  StringList `json:"Resource,omitempty"`
}

// Principal identifies who a trust statement grants access to.
type Principal struct {
	Service string `json:"Service,omitempty"`
	AWS     string `json:"AWS,omitempty"`
}

// StringList marshals as a JSON array but also accepts a bare string on
// unmarshal; IAM emits both forms for single-element lists.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("string or string list expected: %w", err)
	}
	*l = StringList(many)
	return nil
}

// RoleARN returns the ARN of a role in an account.
func RoleARN(accountID, roleName string) string {
	return "arn:aws:iam::" + accountID + ":role/" + roleName
}

// BuildAssumeRolePolicy builds the home-account permission policy for a
// managed role: one statement granting sts:AssumeRole onto the role's ARN
// in each listed account (deduplicated), plus a fixed read-only statement
// for the supporting list and get operations. Returns nil when accountIDs
// is empty, signaling that no policy is needed.
func BuildAssumeRolePolicy(roleName string, accountIDs []string) *PolicyDocument {
	var arns []string
	for _, id := range accountIDs {
		arn := RoleARN(id, roleName)
		if !slices.Contains(arns, arn) {
			arns = append(arns, arn)
		}
	}
	if len(arns) == 0 {
		return nil
	}
	return &PolicyDocument{
		Version: PolicyVersion,
		Statement: []Statement{
			{
				Effect:   "Allow",
				Action:   StringList{"sts:AssumeRole"},
				Resource: StringList(arns),
			},
			{
				Effect:   "Allow",
				Action:   StringList{"s3:Get*", "s3:List*"},
				Resource: StringList{"*"},
			},
		},
	}
}

// BuildServiceTrustPolicy builds a trust policy allowing a service
// principal to assume the role. Used for the home-account copy of a
// managed role.
func BuildServiceTrustPolicy(service string) *PolicyDocument {
	return &PolicyDocument{
		Version: PolicyVersion,
		Statement: []Statement{{
			Effect:    "Allow",
			Principal: &Principal{Service: service},
			Action:    StringList{"sts:AssumeRole"},
		}},
	}
}

// BuildAccountTrustPolicy builds a trust policy restricting AssumeRole to
// a single principal ARN. Used for the member-account copy of a managed
// role, with the home account's role as the principal.
func BuildAccountTrustPolicy(principalARN string) *PolicyDocument {
	return &PolicyDocument{
		Version: PolicyVersion,
		Statement: []Statement{{
			Effect:    "Allow",
			Principal: &Principal{AWS: principalARN},
			Action:    StringList{"sts:AssumeRole"},
		}},
	}
}

// ParsePolicyDocument parses a policy document from its JSON form.
func ParsePolicyDocument(doc string) (*PolicyDocument, error) {
	var d PolicyDocument
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return nil, ErrInternal("malformed policy document").WithCause(err)
	}
	if len(d.Statement) == 0 {
		return nil, ErrInternal("policy document has no statements")
	}
	return &d, nil
}

// Marshal returns the document's JSON form.
func (d *PolicyDocument) Marshal() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", ErrInternal("marshal policy document").WithCause(err)
	}
	return string(data), nil
}

// Resources returns the first statement's resource list.
func (d *PolicyDocument) Resources() []string {
	if len(d.Statement) == 0 {
		return nil
	}
	return d.Statement[0].Resource
}

// AddResource inserts arn into the first statement's resource list with
// set semantics. Returns true if the list changed.
func (d *PolicyDocument) AddResource(arn string) bool {
	if len(d.Statement) == 0 {
		return false
	}
	if slices.Contains(d.Statement[0].Resource, arn) {
		return false
	}
	d.Statement[0].Resource = append(d.Statement[0].Resource, arn)
	return true
}

// RemoveResource removes arn from the first statement's resource list.
// Returns true if the list changed.
func (d *PolicyDocument) RemoveResource(arn string) bool {
	if len(d.Statement) == 0 {
		return false
	}
	i := slices.Index(d.Statement[0].Resource, arn)
	if i < 0 {
		return false
	}
	d.Statement[0].Resource = slices.Delete(d.Statement[0].Resource, i, i+1)
	return true
}

// Empty reports whether the first statement's resource list is empty.
// An empty resource list is a meaningless grant; callers delete the
// policy instead of persisting it.
func (d *PolicyDocument) Empty() bool {
	return len(d.Resources()) == 0
}
