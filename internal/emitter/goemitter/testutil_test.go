package goemitter

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mark3labs/awsgen/internal/model"
	"github.com/mark3labs/awsgen/internal/spec"
)

const thingsAPI = `{
  "metadata": {
    "apiVersion": "2020-01-01",
    "endpointPrefix": "things",
    "jsonVersion": "1.1",
    "protocol": "json",
    "serviceId": "Things",
    "targetPrefix": "Things_20200101"
  },
  "operations": {
    "PutThing": {
      "http": {"method": "POST", "requestUri": "/"},
      "input": {"shape": "PutThingRequest"},
      "output": {"shape": "PutThingResult"},
      "errors": [{"shape": "ThingNotFound"}]
    },
    "Ping": {"http": {"method": "GET", "requestUri": "/ping"}}
  },
  "shapes": {
    "PutThingRequest": {
      "type": "structure",
      "required": ["Name", "Size"],
      "members": {
        "Name": {"shape": "String"},
        "Size": {"shape": "Integer"},
        "Color": {"shape": "Color"},
        "Tags": {"shape": "TagList"},
        "Node": {"shape": "Node"},
        "Data": {"shape": "Blob"},
        "Alpha": {"shape": "String", "locationName": "key"},
        "Beta": {"shape": "String", "locationName": "key"}
      }
    },
    "PutThingResult": {
      "type": "structure",
      "members": {"Id": {"shape": "String"}, "Labels": {"shape": "LabelMap"}}
    },
    "ThingNotFound": {
      "type": "structure",
      "exception": true,
      "members": {"message": {"shape": "String"}}
    },
    "Color": {"type": "string", "enum": ["RED", "dark-blue", "2"]},
    "TagList": {"type": "list", "member": {"shape": "String"}},
    "LabelMap": {"type": "map", "key": {"shape": "String"}, "value": {"shape": "Long"}},
    "Node": {
      "type": "structure",
      "members": {"Next": {"shape": "Node"}, "Value": {"shape": "String"}}
    },
    "String": {"type": "string"},
    "Integer": {"type": "integer"},
    "Long": {"type": "long"},
    "Blob": {"type": "blob"}
  }
}`

const bareAPI = `{
  "metadata": {"apiVersion": "2012-06-01", "endpointPrefix": "%s", "protocol": "rest-json", "serviceId": "%s"},
  "operations": {"Ping": {"http": {"method": "GET", "requestUri": "/{Bucket}"}}},
  "shapes": {}
}`

const thingsEndpoints = `{
  "partitions": [{
    "partition": "aws",
    "services": {
      "things": {
        "partitionEndpoint": "aws-global",
        "endpoints": {
          "us-east-1": {"hostname": "things.us-east-1.example.com"},
          "eu-west-1": {"hostname": "things.eu-west-1.example.com"},
          "aws-global": {"hostname": "things.example.com"}
        }
      }
    }
  }]
}`

func buildModel(t *testing.T, api string, opts ...model.Option) *model.ServiceModel {
	t.Helper()
	doc, err := spec.ParseDocument([]byte(api))
	require.NoError(t, err)
	svc, err := model.Build(doc, opts...)
	require.NoError(t, err)
	return svc
}

func thingsModel(t *testing.T) *model.ServiceModel {
	t.Helper()
	eps, err := spec.ParseEndpoints([]byte(thingsEndpoints))
	require.NoError(t, err)
	return buildModel(t, thingsAPI, model.WithEndpoints(eps))
}

func parseGo(t *testing.T, name string, src []byte) *ast.File {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), name, src, parser.ParseComments)
	require.NoError(t, err, string(src))
	return f
}

func findFunc(f *ast.File, name string) *ast.FuncDecl {
	for _, d := range f.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok && fn.Name.Name == name {
			return fn
		}
	}
	return nil
}

func findType(f *ast.File, name string) *ast.TypeSpec {
	for _, d := range f.Decls {
		gd, ok := d.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, s := range gd.Specs {
			if ts := s.(*ast.TypeSpec); ts.Name.Name == name {
				return ts
			}
		}
	}
	return nil
}

func paramNames(fn *ast.FuncDecl) []string {
	var names []string
	for _, field := range fn.Type.Params.List {
		for _, n := range field.Names {
			names = append(names, n.Name)
		}
	}
	return names
}

func exprString(e ast.Expr) string {
	switch v := e.(type) {
	case *ast.Ident:
		return v.Name
	case *ast.StarExpr:
		return "*" + exprString(v.X)
	case *ast.ArrayType:
		return "[]" + exprString(v.Elt)
	case *ast.MapType:
		return "map[" + exprString(v.Key) + "]" + exprString(v.Value)
	case *ast.SelectorExpr:
		return exprString(v.X) + "." + v.Sel.Name
	}
	return "?"
}

// fieldTypes maps field names of a struct type to their rendered types.
func fieldTypes(ts *ast.TypeSpec) map[string]string {
	out := map[string]string{}
	st := ts.Type.(*ast.StructType)
	for _, field := range st.Fields.List {
		for _, n := range field.Names {
			out[n.Name] = exprString(field.Type)
		}
	}
	return out
}
