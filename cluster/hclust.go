// HoneyBADGER: detecting CNVs and LOH in single-cell RNA-seq data.
// Copyright (c) 2026 the HoneyBADGER authors.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/sqsun/HoneyBADGER/blob/master/LICENSE.txt>.

// Package cluster implements agglomerative hierarchical clustering of
// cells, producing binary dendrograms that can be traversed, cut into
// groups, and rendered in Newick format.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/stat"
)

// A Distance is a symmetric matrix of pairwise distances between n
// items, with zeros on the diagonal.
type Distance struct {
	n    int
	data []float64
}

// NewDistance allocates a zero distance matrix over n items.
func NewDistance(n int) *Distance {
	return &Distance{n: n, data: make([]float64, n*n)}
}

// N returns the number of items.
func (d *Distance) N() int {
	return d.n
}

// At returns the distance between items i and j.
func (d *Distance) At(i, j int) float64 {
	return d.data[i*d.n+j]
}

// Set sets the distance between items i and j (symmetrically).
func (d *Distance) Set(i, j int, v float64) {
	d.data[i*d.n+j] = v
	d.data[j*d.n+i] = v
}

func pairwise(rows [][]float64, threads int, f func(x, y []float64) float64) *Distance {
	d := NewDistance(len(rows))
	parallel.Range(0, len(rows), threads, func(low, high int) {
		for i := low; i < high; i++ {
			for j := 0; j < i; j++ {
				d.Set(i, j, f(rows[i], rows[j]))
			}
		}
	})
	return d
}

// Euclidean computes Euclidean distances between rows, which must all
// have the same length. threads bounds the parallelism; 0 means the
// number of CPUs.
func Euclidean(rows [][]float64, threads int) *Distance {
	return pairwise(rows, threads, func(x, y []float64) float64 {
		var sum float64
		for k := range x {
			diff := x[k] - y[k]
			sum += diff * diff
		}
		return math.Sqrt(sum)
	})
}

// Correlation computes 1 - Pearson correlation between rows. Rows
// without variance are at distance 1 from everything else.
func Correlation(rows [][]float64, threads int) *Distance {
	return pairwise(rows, threads, func(x, y []float64) float64 {
		r := stat.Correlation(x, y, nil)
		if math.IsNaN(r) {
			return 1
		}
		return 1 - r
	})
}

// Linkage selects how the distance between two clusters is derived
// from the distances between their members.
type Linkage int

const (
	// Average uses the mean pairwise distance (UPGMA).
	Average Linkage = iota
	// Complete uses the maximum pairwise distance.
	Complete
	// Single uses the minimum pairwise distance.
	Single
)

var linkageNames = [...]string{"average", "complete", "single"}

func (l Linkage) String() string {
	if l < 0 || int(l) >= len(linkageNames) {
		return fmt.Sprintf("Linkage(%d)", int(l))
	}
	return linkageNames[l]
}

// ParseLinkage parses a linkage name as printed by Linkage.String.
func ParseLinkage(s string) (Linkage, error) {
	for i, name := range linkageNames {
		if strings.EqualFold(s, name) {
			return Linkage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown linkage %v", s)
}

// A Node is a node in a dendrogram. Leaves have a non-negative Leaf
// index and no children; internal nodes have Leaf == -1 and two
// children.
type Node struct {
	Left, Right *Node
	Leaf        int
	Height      float64
	Size        int
}

// IsLeaf reports whether the node is a leaf.
func (node *Node) IsLeaf() bool {
	return node.Leaf >= 0
}

// Leaves returns the item indices below the node, in dendrogram order.
func (node *Node) Leaves() []int {
	leaves := make([]int, 0, node.Size)
	var collect func(*Node)
	collect = func(n *Node) {
		if n.IsLeaf() {
			leaves = append(leaves, n.Leaf)
			return
		}
		collect(n.Left)
		collect(n.Right)
	}
	collect(node)
	return leaves
}

// A Tree is a dendrogram produced by Hclust.
type Tree struct {
	Root    *Node
	Linkage Linkage
}

var errNaN = errors.New("cluster: distance matrix contains NaN")

// Hclust clusters the items of a distance matrix bottom-up. It uses
// the nearest-neighbor chain algorithm with Lance-Williams updates,
// which takes O(n^2) time and memory for the supported linkages.
func Hclust(dist *Distance, linkage Linkage) (*Tree, error) {
	n := dist.N()
	if n == 0 {
		return nil, errors.New("cluster: nothing to cluster")
	}
	if linkage < Average || linkage > Single {
		return nil, fmt.Errorf("cluster: invalid linkage %v", linkage)
	}
	d := make([]float64, len(dist.data))
	for i, v := range dist.data {
		if math.IsNaN(v) {
			return nil, errNaN
		}
		d[i] = v
	}
	nodes := make([]*Node, n)
	active := make([]bool, n)
	minLeaf := make([]int, n)
	for i := range nodes {
		nodes[i] = &Node{Leaf: i, Size: 1}
		active[i] = true
		minLeaf[i] = i
	}

	chain := make([]int, 0, n)
	for remaining := n; remaining > 1; {
		if len(chain) == 0 {
			for i, ok := range active {
				if ok {
					chain = append(chain, i)
					break
				}
			}
		}
		a := chain[len(chain)-1]
		b, best := -1, math.Inf(1)
		if len(chain) > 1 {
			b = chain[len(chain)-2]
			best = d[a*n+b]
		}
		for c, ok := range active {
			if ok && c != a {
				if v := d[a*n+c]; v < best {
					b, best = c, v
				}
			}
		}
		if len(chain) < 2 || b != chain[len(chain)-2] {
			chain = append(chain, b)
			continue
		}
		chain = chain[:len(chain)-2]

		// merge b into slot a; the child holding the lowest item goes left
		left, right := a, b
		if minLeaf[b] < minLeaf[a] {
			left, right = b, a
			minLeaf[a] = minLeaf[b]
		}
		na, nb := float64(nodes[a].Size), float64(nodes[b].Size)
		for k, ok := range active {
			if !ok || k == a || k == b {
				continue
			}
			dak, dbk := d[a*n+k], d[b*n+k]
			var v float64
			switch linkage {
			case Average:
				v = (na*dak + nb*dbk) / (na + nb)
			case Complete:
				v = math.Max(dak, dbk)
			case Single:
				v = math.Min(dak, dbk)
			}
			d[a*n+k], d[k*n+a] = v, v
		}
		nodes[a] = &Node{
			Left:   nodes[left],
			Right:  nodes[right],
			Leaf:   -1,
			Height: best,
			Size:   nodes[a].Size + nodes[b].Size,
		}
		nodes[b] = nil
		active[b] = false
		remaining--
	}
	for i, ok := range active {
		if ok {
			return &Tree{Root: nodes[i], Linkage: linkage}, nil
		}
	}
	panic("unreachable")
}

// Order returns the leaf order of the dendrogram.
func (tree *Tree) Order() []int {
	return tree.Root.Leaves()
}

// Walk visits the nodes of the tree top-down, depth first, left
// before right. Children of a node are skipped when f returns false.
func (tree *Tree) Walk(f func(node *Node, depth int) bool) {
	var walk func(*Node, int)
	walk = func(node *Node, depth int) {
		if !f(node, depth) || node.IsLeaf() {
			return
		}
		walk(node.Left, depth+1)
		walk(node.Right, depth+1)
	}
	walk(tree.Root, 0)
}

// Cut splits the tree into k groups by repeatedly removing the
// highest remaining merge, and returns a group label in [0, k) for
// every item. Groups are numbered in dendrogram order.
func (tree *Tree) Cut(k int) ([]int, error) {
	if k < 1 || k > tree.Root.Size {
		return nil, fmt.Errorf("cluster: cannot cut %v items into %v groups", tree.Root.Size, k)
	}
	groups := []*Node{tree.Root}
	for len(groups) < k {
		split := -1
		for i, node := range groups {
			if !node.IsLeaf() && (split < 0 || node.Height > groups[split].Height) {
				split = i
			}
		}
		node := groups[split]
		groups = append(groups[:split+1], groups[split:]...)
		groups[split], groups[split+1] = node.Left, node.Right
	}
	labels := make([]int, tree.Root.Size)
	for label, node := range groups {
		for _, leaf := range node.Leaves() {
			labels[leaf] = label
		}
	}
	return labels, nil
}

var newickEscaper = strings.NewReplacer(
	" ", "_", "\t", "_", "(", "_", ")", "_", "[", "_", "]", "_",
	"'", "_", ":", "_", ";", "_", ",", "_",
)

// Newick renders the tree in Newick format with branch lengths equal
// to height differences. labels names the items.
func (tree *Tree) Newick(labels []string) (string, error) {
	if len(labels) != tree.Root.Size {
		return "", fmt.Errorf("cluster: %v labels for %v items", len(labels), tree.Root.Size)
	}
	var sb strings.Builder
	var write func(node *Node, parentHeight float64)
	write = func(node *Node, parentHeight float64) {
		if node.IsLeaf() {
			sb.WriteString(newickEscaper.Replace(labels[node.Leaf]))
		} else {
			sb.WriteByte('(')
			write(node.Left, node.Height)
			sb.WriteByte(',')
			write(node.Right, node.Height)
			sb.WriteByte(')')
		}
		if node != tree.Root {
			fmt.Fprintf(&sb, ":%.6g", parentHeight-node.Height)
		}
	}
	write(tree.Root, tree.Root.Height)
	sb.WriteByte(';')
	return sb.String(), nil
}
